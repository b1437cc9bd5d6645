package blinx

import (
	"pkt.systems/blinx/core"
	"pkt.systems/blinx/internal/downloads"
	"pkt.systems/blinx/schema"
)

type eventFanout struct {
	sinks     []core.EventSink
	downloads []downloads.Sink
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

func (f eventFanout) OnChromeEvent(event schema.ChromeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnChromeEvent(event)
	}
}

func (f eventFanout) OnNotice(event schema.NoticeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnNotice(event)
	}
}

func (f eventFanout) OnDownloadEvent(event schema.DownloadEvent) {
	for _, sink := range f.downloads {
		if sink == nil {
			continue
		}
		sink.OnDownloadEvent(event)
	}
}

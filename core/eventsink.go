package core

import "pkt.systems/blinx/schema"

// EventSink receives tab, chrome and notice events from the manager.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
	OnChromeEvent(event schema.ChromeEvent)
	OnNotice(event schema.NoticeEvent)
}

package eventbus

import (
	"context"
	"sync"

	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTab carries tab lifecycle updates.
	EventTab EventType = "tab"
	// EventChrome carries toolbar state updates.
	EventChrome EventType = "chrome"
	// EventDownload carries download record updates.
	EventDownload EventType = "download"
	// EventNotice carries one-line user notices.
	EventNotice EventType = "notice"
)

// AllTypes lists every event type.
var AllTypes = []EventType{EventTab, EventChrome, EventDownload, EventNotice}

// Event represents a UI-facing event emitted by the shell.
type Event struct {
	Type     EventType
	Tab      schema.TabEvent
	Chrome   schema.ChromeEvent
	Download schema.DownloadEvent
	Notice   schema.NoticeEvent
}

// Bus fans events out to per-type subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[EventType]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[EventType]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the given types, or for every type
// when none are given, and returns a channel + cancel.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	if len(types) == 0 {
		types = AllTypes
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	for _, typ := range types {
		typeSubs := b.subs[typ]
		if typeSubs == nil {
			typeSubs = make(map[chan Event]struct{})
			b.subs[typ] = typeSubs
		}
		typeSubs[ch] = struct{}{}
	}
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "types", len(types))
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			for _, typ := range types {
				if subs := b.subs[typ]; subs != nil {
					delete(subs, ch)
					if len(subs) == 0 {
						delete(b.subs, typ)
					}
				}
			}
			close(ch)
			b.mu.Unlock()
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnTabEvent publishes a tab event.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(Event{Type: EventTab, Tab: event})
}

// OnChromeEvent publishes a toolbar state event.
func (b *Bus) OnChromeEvent(event schema.ChromeEvent) {
	b.publish(Event{Type: EventChrome, Chrome: event})
}

// OnDownloadEvent publishes a download event.
func (b *Bus) OnDownloadEvent(event schema.DownloadEvent) {
	b.publish(Event{Type: EventDownload, Download: event})
}

// OnNotice publishes a notice.
func (b *Bus) OnNotice(event schema.NoticeEvent) {
	b.publish(Event{Type: EventNotice, Notice: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := 0
	for sub := range b.subs[event.Type] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}

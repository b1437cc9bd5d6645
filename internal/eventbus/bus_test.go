package eventbus

import (
	"testing"
	"time"

	"pkt.systems/blinx/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	event := schema.TabEvent{Type: schema.TabEventCreated, Tab: schema.TabSnapshot{ID: "tab1"}, ActiveTab: "tab1"}
	bus.OnTabEvent(event)

	select {
	case got := <-ch:
		if got.Type != EventTab {
			t.Fatalf("expected tab event, got %v", got.Type)
		}
		if got.Tab.Tab.ID != "tab1" || got.Tab.Type != schema.TabEventCreated {
			t.Fatalf("unexpected payload: %+v", got.Tab)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe(EventDownload)
	defer cancel()

	bus.OnNotice(schema.NoticeEvent{Message: "ignored"})
	bus.OnDownloadEvent(schema.DownloadEvent{Download: schema.Download{ID: "d1"}})

	select {
	case got := <-ch:
		if got.Type != EventDownload || got.Download.Download.ID != "d1" {
			t.Fatalf("expected download event, got %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra event %+v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	bus.OnNotice(schema.NoticeEvent{Message: "after cancel"})
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe(EventChrome)
	defer cancel()

	bus.OnChromeEvent(schema.ChromeEvent{})
	done := make(chan struct{})
	go func() {
		bus.OnChromeEvent(schema.ChromeEvent{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}

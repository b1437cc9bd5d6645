package chrome

import (
	"testing"

	"pkt.systems/blinx/schema"
)

func stripIDs(s *tabStrip) string {
	var out string
	for _, tab := range s.tabs {
		out += string(tab.ID)
	}
	return out
}

func TestTabStripFollowsEvents(t *testing.T) {
	var s tabStrip
	for i, id := range []schema.TabID{"a", "b", "c"} {
		s.apply(schema.TabEvent{Type: schema.TabEventCreated, Tab: schema.TabSnapshot{ID: id}, Index: i})
	}
	if got := stripIDs(&s); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if !s.apply(schema.TabEvent{Type: schema.TabEventMoved, Tab: schema.TabSnapshot{ID: "a"}, Index: 2}) {
		t.Fatalf("expected move to redraw")
	}
	if got := stripIDs(&s); got != "bca" {
		t.Fatalf("expected bca, got %s", got)
	}
	s.apply(schema.TabEvent{Type: schema.TabEventActivated, Tab: schema.TabSnapshot{ID: "c", Active: true}})
	if s.active != "c" {
		t.Fatalf("expected c active, got %s", s.active)
	}
	s.apply(schema.TabEvent{Type: schema.TabEventClosed, Tab: schema.TabSnapshot{ID: "c"}})
	if got := stripIDs(&s); got != "ba" || s.active != "" {
		t.Fatalf("expected ba with no active tab, got %s active=%q", got, s.active)
	}
	if s.apply(schema.TabEvent{Type: schema.TabEventClosed, Tab: schema.TabSnapshot{ID: "zz"}}) {
		t.Fatalf("unknown close should not redraw")
	}
}

func TestTabStripRedrawsOnlyForVisibleChanges(t *testing.T) {
	var s tabStrip
	s.apply(schema.TabEvent{Type: schema.TabEventCreated, Tab: schema.TabSnapshot{ID: "a", Title: "One"}})
	if s.apply(schema.TabEvent{Type: schema.TabEventUpdated, Tab: schema.TabSnapshot{ID: "a", Title: "One", URL: "https://x"}}) {
		t.Fatalf("url-only change should not redraw the strip")
	}
	if !s.apply(schema.TabEvent{Type: schema.TabEventLoading, Tab: schema.TabSnapshot{ID: "a", Title: "One", Loading: true}}) {
		t.Fatalf("loading change should redraw the strip")
	}
}

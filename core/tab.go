package core

import (
	"pkt.systems/blinx/internal/internalpage"
	"pkt.systems/blinx/schema"
)

// TabState is the activation state of a tab.
type TabState int

const (
	// TabInactive tabs keep their surface hidden.
	TabInactive TabState = iota
	// TabActive is the single visible tab.
	TabActive
	// TabClosed tabs have released their surface.
	TabClosed
)

// Tab is one open browsing context and its derived display state.
type Tab struct {
	id      schema.TabID
	surface Surface
	state   TabState

	url          string
	internal     string
	title        string
	favicon      string
	loading      bool
	canGoBack    bool
	canGoForward bool
}

func newTab(id schema.TabID, url string) *Tab {
	return &Tab{
		id:    id,
		url:   url,
		title: schema.DefaultTabTitle,
	}
}

// ID returns the tab identifier.
func (t *Tab) ID() schema.TabID { return t.id }

// URL returns the last known location.
func (t *Tab) URL() string { return t.url }

// Title returns the display title.
func (t *Tab) Title() string { return t.title }

// Favicon returns the favicon reference, if any.
func (t *Tab) Favicon() string { return t.favicon }

// Loading reports whether the surface is loading.
func (t *Tab) Loading() bool { return t.loading }

// CanGoBack reports the last back availability read from the surface.
func (t *Tab) CanGoBack() bool { return t.canGoBack }

// CanGoForward reports the last forward availability read from the surface.
func (t *Tab) CanGoForward() bool { return t.canGoForward }

// State returns the activation state.
func (t *Tab) State() TabState { return t.state }

// Snapshot returns a copy of the tab's display state.
func (t *Tab) Snapshot() schema.TabSnapshot {
	return schema.TabSnapshot{
		ID:           t.id,
		URL:          t.url,
		Title:        t.title,
		Favicon:      t.favicon,
		Loading:      t.loading,
		CanGoBack:    t.canGoBack,
		CanGoForward: t.canGoForward,
		Active:       t.state == TabActive,
	}
}

func (t *Tab) refreshNavigation() {
	if t.surface == nil {
		return
	}
	t.canGoBack = t.surface.CanGoBack()
	t.canGoForward = t.surface.CanGoForward()
}

// apply folds a surface event into the display state and reports whether the
// visible state changed. New-window requests are handled by the manager.
func (t *Tab) apply(ev SurfaceEvent) bool {
	switch ev.Kind {
	case EventTitle:
		if ev.Title == "" || ev.Title == t.title {
			return false
		}
		t.title = ev.Title
		return true
	case EventFavicon:
		if len(ev.Favicons) == 0 || ev.Favicons[0] == t.favicon {
			return false
		}
		t.favicon = ev.Favicons[0]
		return true
	case EventLoadStart:
		changed := !t.loading
		t.loading = true
		return changed
	case EventLoadStop:
		changed := t.loading
		t.loading = false
		return changed
	case EventNavigated:
		switch {
		case t.internal != "" && internalpage.IsRendered(ev.URL):
			t.url = t.internal
		case ev.URL != "":
			t.internal = ""
			t.url = ev.URL
		}
		t.refreshNavigation()
		return true
	case EventLoadFailed:
		if ev.Canceled {
			return false
		}
		if internalpage.IsInternal(ev.URL) {
			t.title = schema.InvalidInternalTitle
		} else {
			t.title = schema.LoadErrorTitle
		}
		return true
	}
	return false
}

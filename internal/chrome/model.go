package chrome

import "pkt.systems/blinx/schema"

// tabStrip mirrors the manager's tab order from tab events so the chrome can
// redraw without querying the UI loop.
type tabStrip struct {
	tabs   []schema.TabSnapshot
	active schema.TabID
}

// apply folds ev into the strip and reports whether the tab bar needs a
// redraw.
func (s *tabStrip) apply(ev schema.TabEvent) bool {
	switch ev.Type {
	case schema.TabEventCreated:
		if s.indexOf(ev.Tab.ID) >= 0 {
			return s.replace(ev.Tab)
		}
		idx := clamp(ev.Index, 0, len(s.tabs))
		s.tabs = append(s.tabs, schema.TabSnapshot{})
		copy(s.tabs[idx+1:], s.tabs[idx:])
		s.tabs[idx] = ev.Tab
		return true
	case schema.TabEventClosed:
		idx := s.indexOf(ev.Tab.ID)
		if idx < 0 {
			return false
		}
		s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
		if s.active == ev.Tab.ID {
			s.active = ""
		}
		return true
	case schema.TabEventActivated:
		s.active = ev.Tab.ID
		s.replace(ev.Tab)
		return true
	case schema.TabEventDeactivated:
		return s.replace(ev.Tab)
	case schema.TabEventMoved:
		from := s.indexOf(ev.Tab.ID)
		if from < 0 {
			return false
		}
		to := clamp(ev.Index, 0, len(s.tabs)-1)
		if from == to {
			return false
		}
		tab := s.tabs[from]
		s.tabs = append(s.tabs[:from], s.tabs[from+1:]...)
		s.tabs = append(s.tabs, schema.TabSnapshot{})
		copy(s.tabs[to+1:], s.tabs[to:])
		s.tabs[to] = tab
		return true
	case schema.TabEventUpdated, schema.TabEventLoading:
		return s.replace(ev.Tab)
	}
	return false
}

func (s *tabStrip) replace(tab schema.TabSnapshot) bool {
	idx := s.indexOf(tab.ID)
	if idx < 0 {
		return false
	}
	prev := s.tabs[idx]
	s.tabs[idx] = tab
	return prev.Title != tab.Title || prev.Loading != tab.Loading || prev.Active != tab.Active
}

func (s *tabStrip) indexOf(id schema.TabID) int {
	for i, tab := range s.tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}

func (s *tabStrip) snapshot() []schema.TabSnapshot {
	return append([]schema.TabSnapshot(nil), s.tabs...)
}

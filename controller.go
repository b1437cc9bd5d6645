package blinx

import (
	"context"
	"fmt"

	"pkt.systems/blinx/internal/bookmarks"
	"pkt.systems/blinx/internal/chrome"
	"pkt.systems/blinx/schema"
)

var _ chrome.Controller = (*Shell)(nil)

// OpenTab opens a tab at url, or at the homepage when url is blank.
func (s *Shell) OpenTab(ctx context.Context, url string) error {
	return s.do(ctx, func() error {
		_, err := s.manager.CreateTab(s.runCtx(), url)
		return err
	})
}

// Navigate loads input in the active tab.
func (s *Shell) Navigate(ctx context.Context, input string) error {
	return s.do(ctx, func() error {
		return s.manager.Navigate(s.runCtx(), input)
	})
}

// CloseTab closes the tab at a zero-based display index. A negative index
// closes the active tab.
func (s *Shell) CloseTab(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		id, err := s.tabAt(index)
		if err != nil {
			return err
		}
		if err := s.manager.CloseTab(s.runCtx(), id); err != nil {
			if s.manager.Len() > 0 {
				return err
			}
			s.log.Warn("replacement tab failed, opening blank tab", "err", err)
			return s.openBlankTab(err)
		}
		return nil
	})
}

// ActivateTab switches to the tab at a zero-based display index.
func (s *Shell) ActivateTab(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		id, err := s.tabAt(index)
		if err != nil {
			return err
		}
		return s.manager.SetActiveTab(s.runCtx(), id)
	})
}

// MoveTab moves the tab at from to position to.
func (s *Shell) MoveTab(ctx context.Context, from, to int) error {
	return s.do(ctx, func() error {
		id, err := s.tabAt(from)
		if err != nil {
			return err
		}
		return s.manager.MoveTab(s.runCtx(), id, to)
	})
}

// DropTab finishes a drag of the tab at index, placing it by pointerX
// against the midpoints of the tabs in display order.
func (s *Shell) DropTab(ctx context.Context, index int, pointerX float64, midpoints []float64) error {
	return s.do(ctx, func() error {
		id, err := s.tabAt(index)
		if err != nil {
			return err
		}
		return s.manager.DropTab(s.runCtx(), id, pointerX, midpoints)
	})
}

// Tabs returns tab snapshots in display order.
func (s *Shell) Tabs(ctx context.Context) ([]schema.TabSnapshot, error) {
	var tabs []schema.TabSnapshot
	err := s.do(ctx, func() error {
		tabs = s.manager.Tabs()
		return nil
	})
	return tabs, err
}

// Back navigates the active tab back.
func (s *Shell) Back(ctx context.Context) error {
	return s.do(ctx, func() error { return s.manager.Back(s.runCtx()) })
}

// Forward navigates the active tab forward.
func (s *Shell) Forward(ctx context.Context) error {
	return s.do(ctx, func() error { return s.manager.Forward(s.runCtx()) })
}

// Reload reloads the active tab.
func (s *Shell) Reload(ctx context.Context) error {
	return s.do(ctx, func() error { return s.manager.Reload(s.runCtx()) })
}

// Stop stops loading the active tab.
func (s *Shell) Stop(ctx context.Context) error {
	return s.do(ctx, func() error { return s.manager.Stop(s.runCtx()) })
}

// ToggleBookmark bookmarks or unbookmarks the active tab.
func (s *Shell) ToggleBookmark(ctx context.Context) (bool, error) {
	var added bool
	err := s.do(ctx, func() error {
		var err error
		added, err = s.manager.ToggleBookmark(s.runCtx())
		return err
	})
	return added, err
}

// AddBookmark bookmarks the active tab under title in folder. A blank title
// returns schema.ErrCanceled.
func (s *Shell) AddBookmark(ctx context.Context, title string, folder schema.FolderID) (schema.Bookmark, error) {
	var added schema.Bookmark
	err := s.do(ctx, func() error {
		tab, ok := s.manager.Active()
		if !ok {
			return schema.ErrNoActiveTab
		}
		var err error
		added, err = s.bookmarks.Add(bookmarks.AddRequest{
			URL:     tab.URL,
			Title:   title,
			Favicon: tab.Favicon,
			Folder:  folder,
		})
		if err != nil {
			return err
		}
		s.manager.RefreshChrome()
		return nil
	})
	return added, err
}

// Bookmarks lists every bookmark.
func (s *Shell) Bookmarks() []schema.Bookmark {
	return s.bookmarks.List()
}

// OpenBookmark navigates to a bookmark, in a new tab when newTab is set.
func (s *Shell) OpenBookmark(ctx context.Context, id schema.BookmarkID, newTab bool) error {
	return s.do(ctx, func() error {
		return s.manager.OpenBookmark(s.runCtx(), id, newTab)
	})
}

// RemoveBookmark deletes a bookmark.
func (s *Shell) RemoveBookmark(id schema.BookmarkID) error {
	if err := s.bookmarks.Remove(id); err != nil {
		return err
	}
	s.post(s.manager.RefreshChrome)
	return nil
}

// Folders lists bookmark folders.
func (s *Shell) Folders() []schema.BookmarkFolder {
	return s.bookmarks.Folders()
}

// AddFolder creates a bookmark folder.
func (s *Shell) AddFolder(title string) (schema.BookmarkFolder, error) {
	return s.bookmarks.AddFolder(title)
}

// RemoveFolder deletes a folder, moving its bookmarks to the bar.
func (s *Shell) RemoveFolder(id schema.FolderID) error {
	return s.bookmarks.RemoveFolder(id)
}

// Downloads returns in-flight downloads and the persisted history.
func (s *Shell) Downloads() (active, history []schema.Download) {
	return s.downloads.Active(), s.downloads.History()
}

// Settings returns the current preferences.
func (s *Shell) Settings() schema.Settings {
	return s.settings.Get()
}

// SetSetting updates one preference and applies it to the running shell.
func (s *Shell) SetSetting(key, value string) error {
	prev := s.settings.Get()
	if err := s.settings.Set(key, value); err != nil {
		return err
	}
	next := s.settings.Get()
	if prev.DownloadPath != next.DownloadPath {
		s.applyDownloadDir(next.DownloadPath)
	}
	s.post(s.manager.RefreshChrome)
	return nil
}

// Minimize minimizes the host window.
func (s *Shell) Minimize(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.manager.Minimize()
		return nil
	})
}

// MaximizeOrRestore toggles the host window between maximized and normal.
func (s *Shell) MaximizeOrRestore(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.manager.MaximizeOrRestore()
		return nil
	})
}

// tabAt resolves a display index to a tab id. It must run on the UI loop.
func (s *Shell) tabAt(index int) (schema.TabID, error) {
	if index < 0 {
		active, ok := s.manager.Active()
		if !ok {
			return "", schema.ErrNoActiveTab
		}
		return active.ID, nil
	}
	tab, ok := s.manager.TabAt(index)
	if !ok {
		return "", fmt.Errorf("tab %d: %w", index+1, schema.ErrTabNotFound)
	}
	return tab.ID(), nil
}

package core

import (
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// SettingsSource supplies the preferences the manager reads.
type SettingsSource interface {
	Get() schema.Settings
}

// BookmarkIndex is the part of the bookmark store the toolbar uses.
type BookmarkIndex interface {
	IsBookmarked(url string) bool
	Toggle(url, title, favicon string) (bool, error)
	Get(id schema.BookmarkID) (schema.Bookmark, bool)
}

// ManagerDeps captures dependencies for the tab session manager.
type ManagerDeps struct {
	SurfaceFactory SurfaceFactory
	Settings       SettingsSource
	Bookmarks      BookmarkIndex
	EventSink      EventSink
	Window         WindowController
	Logger         pslog.Logger
}

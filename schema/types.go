package schema

// TabID identifies an open tab for the lifetime of the process.
type TabID string

// BookmarkID identifies a stored bookmark.
type BookmarkID string

// FolderID identifies a bookmark folder.
type FolderID string

// DownloadID identifies a download reported by the rendering engine.
type DownloadID string

// ThemeName identifies a UI theme.
type ThemeName string

// RootFolder is the bookmarks bar folder every bookmark falls back to.
const RootFolder FolderID = "root"

const (
	// InternalScheme prefixes shell-owned pages.
	InternalScheme = "internal://"
	// BlankURL is the placeholder page for tabs that must not navigate.
	BlankURL = "about:blank"
	// DefaultTabTitle is shown until the surface reports a title.
	DefaultTabTitle = "New Tab"
	// InvalidInternalTitle is shown for rejected internal:// paths.
	InvalidInternalTitle = "Invalid internal URL"
	// LoadErrorTitle is shown when a page fails to load.
	LoadErrorTitle = "Error loading page"
)

package schema

import "time"

// TabSnapshot is a read-only view of tab state for transports.
type TabSnapshot struct {
	ID           TabID
	URL          string
	Title        string
	Favicon      string
	Loading      bool
	CanGoBack    bool
	CanGoForward bool
	Active       bool
}

// LoadingAffordance is the label of the combined reload/stop button.
type LoadingAffordance string

const (
	// AffordanceReload shows the reload action.
	AffordanceReload LoadingAffordance = "reload"
	// AffordanceStop shows the stop action while the active tab loads.
	AffordanceStop LoadingAffordance = "stop"
)

// ChromeState is the derived toolbar state for the active tab.
type ChromeState struct {
	ActiveTab      TabID
	URLBar         string
	BackEnabled    bool
	ForwardEnabled bool
	Loading        LoadingAffordance
	Bookmarked     bool
	Theme          ThemeName
	BookmarksBarOn bool
}

// Settings captures user preferences.
type Settings struct {
	Homepage            string `json:"homepage"`
	SearchEngine        string `json:"search_engine"`
	DarkMode            bool   `json:"dark_mode"`
	EnableNotifications bool   `json:"enable_notifications"`
	DownloadPath        string `json:"download_path"`
	BookmarksBarVisible bool   `json:"bookmarks_bar_visible"`
}

// Bookmark is a saved location.
type Bookmark struct {
	ID        BookmarkID `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Favicon   string     `json:"favicon,omitempty"`
	Folder    FolderID   `json:"folder"`
	DateAdded time.Time  `json:"date_added"`
}

// BookmarkFolder groups bookmarks below the bookmarks bar.
type BookmarkFolder struct {
	ID    FolderID `json:"id"`
	Title string   `json:"title"`
}

// DownloadStatus describes the lifecycle stage of a download.
type DownloadStatus string

const (
	// DownloadInProgress indicates bytes are still arriving.
	DownloadInProgress DownloadStatus = "in_progress"
	// DownloadCompleted indicates the file is on disk.
	DownloadCompleted DownloadStatus = "completed"
	// DownloadFailed indicates the engine gave up on the download.
	DownloadFailed DownloadStatus = "failed"
)

// Download is a tracked download record.
type Download struct {
	ID            DownloadID     `json:"id"`
	Filename      string         `json:"filename"`
	URL           string         `json:"url"`
	Path          string         `json:"path"`
	Size          int64          `json:"size"`
	Status        DownloadStatus `json:"status"`
	Progress      float64        `json:"progress"`
	Error         string         `json:"error,omitempty"`
	StartTime     time.Time      `json:"start_time"`
	CompletedTime *time.Time     `json:"completed_time,omitempty"`
}

package schema

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventDeactivated indicates a tab stopped being active.
	TabEventDeactivated TabEventType = "deactivated"
	// TabEventUpdated indicates a tab's title, favicon or url changed.
	TabEventUpdated TabEventType = "updated"
	// TabEventLoading indicates a tab started or stopped loading.
	TabEventLoading TabEventType = "loading"
	// TabEventMoved indicates a tab changed position in the tab strip.
	TabEventMoved TabEventType = "moved"
)

// TabEvent describes a tab lifecycle update.
type TabEvent struct {
	Type      TabEventType
	Tab       TabSnapshot
	ActiveTab TabID
	Index     int
}

// ChromeEvent carries the toolbar state after it changed.
type ChromeEvent struct {
	State ChromeState
}

// DownloadEvent carries a download record after it changed.
type DownloadEvent struct {
	Download Download
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel string

const (
	// NoticeInfo is informational.
	NoticeInfo NoticeLevel = "info"
	// NoticeError reports a local, non-fatal failure.
	NoticeError NoticeLevel = "error"
)

// NoticeEvent is a one-line message for the chrome status line.
type NoticeEvent struct {
	Level   NoticeLevel
	TabID   TabID
	Message string
}

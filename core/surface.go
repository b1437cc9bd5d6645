package core

import (
	"context"

	"pkt.systems/blinx/schema"
)

// SurfaceEventKind identifies a rendering surface lifecycle notification.
type SurfaceEventKind int

const (
	// EventTitle reports a new document title.
	EventTitle SurfaceEventKind = iota + 1
	// EventFavicon reports favicon candidates.
	EventFavicon
	// EventLoadStart reports that the surface started loading.
	EventLoadStart
	// EventLoadStop reports that the surface finished loading.
	EventLoadStop
	// EventNavigated reports a committed navigation.
	EventNavigated
	// EventLoadFailed reports a failed load.
	EventLoadFailed
	// EventNewWindow reports that content asked for a new window.
	EventNewWindow
)

func (k SurfaceEventKind) String() string {
	switch k {
	case EventTitle:
		return "title"
	case EventFavicon:
		return "favicon"
	case EventLoadStart:
		return "load_start"
	case EventLoadStop:
		return "load_stop"
	case EventNavigated:
		return "navigated"
	case EventLoadFailed:
		return "load_failed"
	case EventNewWindow:
		return "new_window"
	default:
		return "unknown"
	}
}

// SurfaceEvent is a notification emitted by a rendering surface.
type SurfaceEvent struct {
	Kind     SurfaceEventKind
	Title    string
	Favicons []string
	URL      string
	// ErrorText describes a load failure.
	ErrorText string
	// Canceled marks a load failure caused by a stop request.
	Canceled bool
}

// SurfaceHandler receives events for one tab. Handlers run on the UI loop.
type SurfaceHandler func(event SurfaceEvent)

// Surface is the rendering engine handle owned by exactly one tab.
type Surface interface {
	Load(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Stop(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	CanGoBack() bool
	CanGoForward() bool
	URL() string
	Favicon() string
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// SurfaceRequest describes a surface to create. An empty URL leaves the
// surface on about:blank without navigating.
type SurfaceRequest struct {
	TabID   schema.TabID
	URL     string
	Handler SurfaceHandler
}

// SurfaceFactory creates rendering surfaces.
type SurfaceFactory interface {
	NewSurface(ctx context.Context, req SurfaceRequest) (Surface, error)
}

package cdpsurface

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pkt.systems/blinx/core"
	"pkt.systems/blinx/internal/logx"
	"pkt.systems/blinx/internal/uiloop"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

const faviconScript = `Array.from(document.querySelectorAll('link[rel~="icon"]')).map(l => l.href).filter(Boolean)`

// surface is one Chromium page target. CDP events are handed to a
// per-surface worker so commands can be issued while handling them; results
// are posted to the UI loop as core.SurfaceEvent values.
type surface struct {
	b       *Browser
	tab     schema.TabID
	handler core.SurfaceHandler
	log     pslog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	target  target.ID
	worker  *uiloop.Loop

	mu         sync.Mutex
	url        string
	title      string
	favicon    string
	canBack    bool
	canForward bool
	closed     bool

	// documents tracks main-frame document requests; touched by the worker only.
	documents map[network.RequestID]bool
}

func (b *Browser) newSurface(ctx context.Context, req core.SurfaceRequest) (core.Surface, error) {
	if req.Handler == nil {
		return nil, errors.New("surface handler is required")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	s := &surface{
		b:         b,
		tab:       req.TabID,
		handler:   req.Handler,
		log:       logx.WithTabID(b.log, req.TabID),
		ctx:       tabCtx,
		cancel:    cancel,
		url:       schema.BlankURL,
		documents: make(map[network.RequestID]bool),
	}
	s.worker = uiloop.New(s.log)
	chromedp.ListenTarget(tabCtx, s.onTargetEvent)

	// The first Run creates the target and binds its event loop to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		s.worker.Close()
		return nil, fmt.Errorf("%w: %w", schema.ErrSurfaceUnavailable, err)
	}
	s.target = chromedp.FromContext(tabCtx).Target.TargetID
	s.log = s.log.With("target", string(s.target))
	if !b.register(s) {
		cancel()
		s.worker.Close()
		return nil, schema.ErrSurfaceUnavailable
	}
	go func() {
		_ = s.worker.Run(tabCtx)
	}()

	theme := b.currentTheme()
	s.worker.Post(func() { s.emulateTheme(theme) })
	if req.URL != "" && req.URL != schema.BlankURL {
		if err := s.Load(ctx, req.URL); err != nil {
			_ = s.Destroy(ctx)
			return nil, err
		}
	}
	s.log.Debug("cdp surface created")
	return s, nil
}

func (s *surface) Load(_ context.Context, rawURL string) error {
	return s.command("load", func(ctx context.Context) error {
		_, loaderID, errorText, _, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			s.emit(core.SurfaceEvent{Kind: core.EventLoadFailed, URL: rawURL, ErrorText: err.Error()})
			return nil
		}
		if errorText == "" {
			return nil
		}
		// Network failures usually arrive as loadingFailed as well; queue the
		// check behind events that are already pending.
		id := network.RequestID(loaderID)
		s.worker.Post(func() {
			if s.documents[id] {
				return
			}
			s.emit(core.SurfaceEvent{
				Kind:      core.EventLoadFailed,
				URL:       rawURL,
				ErrorText: errorText,
				Canceled:  errorText == "net::ERR_ABORTED",
			})
		})
		return nil
	})
}

func (s *surface) Reload(context.Context) error {
	return s.command("reload", func(ctx context.Context) error {
		return page.Reload().Do(ctx)
	})
}

func (s *surface) Stop(context.Context) error {
	return s.command("stop", func(ctx context.Context) error {
		return page.StopLoading().Do(ctx)
	})
}

func (s *surface) GoBack(context.Context) error {
	return s.command("back", func(ctx context.Context) error {
		return s.traverse(ctx, -1)
	})
}

func (s *surface) GoForward(context.Context) error {
	return s.command("forward", func(ctx context.Context) error {
		return s.traverse(ctx, 1)
	})
}

func (s *surface) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canBack
}

func (s *surface) CanGoForward() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canForward
}

func (s *surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *surface) Favicon() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favicon
}

// Show brings the target to the front of the shell window.
func (s *surface) Show(context.Context) error {
	if s.isClosed() {
		return schema.ErrSurfaceUnavailable
	}
	s.b.setFront(s.target)
	id := s.target
	go func() {
		if err := s.b.browserDo(func(ctx context.Context) error {
			return target.ActivateTarget(id).Do(ctx)
		}); err != nil {
			s.log.Debug("cdp surface activate failed", "err", err)
		}
	}()
	return nil
}

// Hide is a no-op: Chromium hides a target when another one is activated.
func (s *surface) Hide(context.Context) error {
	if s.isClosed() {
		return schema.ErrSurfaceUnavailable
	}
	return nil
}

// Destroy closes the target. It is idempotent.
func (s *surface) Destroy(context.Context) error {
	if !s.markClosed() {
		return nil
	}
	s.b.forget(s.target)
	s.release()
	s.log.Debug("cdp surface destroyed")
	return nil
}

func (s *surface) release() {
	s.markClosed()
	s.worker.Close()
	// Cancelling a chromedp tab context waits for the target to close.
	go s.cancel()
}

func (s *surface) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *surface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// command queues fn on the worker with a bounded context. It never waits
// for the browser.
func (s *surface) command(name string, fn func(ctx context.Context) error) error {
	if s.isClosed() {
		return schema.ErrSurfaceUnavailable
	}
	if !s.worker.Post(func() {
		if err := s.run(fn); err != nil && !s.isClosed() {
			s.log.Warn("cdp surface command failed", "command", name, "err", err)
		}
	}) {
		return schema.ErrSurfaceUnavailable
	}
	return nil
}

func (s *surface) run(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.ActionFunc(fn))
}

func (s *surface) traverse(ctx context.Context, delta int64) error {
	cur, entries, err := page.GetNavigationHistory().Do(ctx)
	if err != nil {
		return err
	}
	next := cur + delta
	if next < 0 || next >= int64(len(entries)) {
		return nil
	}
	return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
}

func (s *surface) applyTheme(theme schema.ThemeName) {
	s.worker.Post(func() { s.emulateTheme(theme) })
}

func (s *surface) emulateTheme(theme schema.ThemeName) {
	scheme := "light"
	if theme == schema.ThemeDark {
		scheme = "dark"
	}
	err := s.run(func(ctx context.Context) error {
		return emulation.SetEmulatedMedia().
			WithFeatures([]*emulation.MediaFeature{{Name: "prefers-color-scheme", Value: scheme}}).
			Do(ctx)
	})
	if err != nil && !s.isClosed() {
		s.log.Debug("cdp surface theme failed", "theme", string(theme), "err", err)
	}
}

// onTargetEvent runs on the chromedp reader goroutine and must not block.
func (s *surface) onTargetEvent(ev any) {
	switch ev.(type) {
	case *page.EventFrameStartedLoading,
		*page.EventFrameStoppedLoading,
		*page.EventFrameNavigated,
		*page.EventNavigatedWithinDocument,
		*page.EventWindowOpen,
		*network.EventRequestWillBeSent,
		*network.EventLoadingFinished,
		*network.EventLoadingFailed:
		s.worker.Post(func() { s.handle(ev) })
	}
}

func (s *surface) handle(ev any) {
	if s.isClosed() {
		return
	}
	switch e := ev.(type) {
	case *page.EventFrameStartedLoading:
		if s.mainFrame(e.FrameID) {
			s.emit(core.SurfaceEvent{Kind: core.EventLoadStart})
		}
	case *page.EventFrameStoppedLoading:
		if s.mainFrame(e.FrameID) {
			s.emit(core.SurfaceEvent{Kind: core.EventLoadStop})
			s.refreshFavicon()
		}
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		s.navigated(e.Frame.URL + e.Frame.URLFragment)
	case *page.EventNavigatedWithinDocument:
		if s.mainFrame(e.FrameID) {
			s.navigated(e.URL)
		}
	case *page.EventWindowOpen:
		if e.URL != "" {
			s.emit(core.SurfaceEvent{Kind: core.EventNewWindow, URL: e.URL})
		}
	case *network.EventRequestWillBeSent:
		if e.Type == network.ResourceTypeDocument && s.mainFrame(e.FrameID) {
			s.documents[e.RequestID] = false
		}
	case *network.EventLoadingFinished:
		delete(s.documents, e.RequestID)
	case *network.EventLoadingFailed:
		if _, ok := s.documents[e.RequestID]; !ok {
			return
		}
		s.documents[e.RequestID] = true
		s.emit(core.SurfaceEvent{
			Kind:      core.EventLoadFailed,
			URL:       s.URL(),
			ErrorText: e.ErrorText,
			Canceled:  e.Canceled || e.ErrorText == "net::ERR_ABORTED",
		})
	}
}

func (s *surface) mainFrame(id cdp.FrameID) bool {
	return string(id) == string(s.target)
}

func (s *surface) navigated(rawURL string) {
	var back, forward bool
	err := s.run(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		back = cur > 0
		forward = cur+1 < int64(len(entries))
		return nil
	})
	s.mu.Lock()
	s.url = rawURL
	if err == nil {
		s.canBack = back
		s.canForward = forward
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Debug("cdp surface history failed", "err", err)
	}
	s.emit(core.SurfaceEvent{Kind: core.EventNavigated, URL: rawURL})
}

// titleChanged is called from the browser listener.
func (s *surface) titleChanged(title string) {
	s.mu.Lock()
	if s.closed || title == "" || title == s.title {
		s.mu.Unlock()
		return
	}
	s.title = title
	s.mu.Unlock()
	s.worker.Post(func() {
		s.emit(core.SurfaceEvent{Kind: core.EventTitle, Title: title})
	})
}

func (s *surface) refreshFavicon() {
	var hrefs []string
	if err := s.run(func(ctx context.Context) error {
		return chromedp.Evaluate(faviconScript, &hrefs).Do(ctx)
	}); err != nil {
		s.log.Trace("cdp surface favicon lookup failed", "err", err)
	}
	if len(hrefs) == 0 {
		if fallback := defaultFavicon(s.URL()); fallback != "" {
			hrefs = []string{fallback}
		}
	}
	if len(hrefs) == 0 {
		return
	}
	s.mu.Lock()
	changed := s.favicon != hrefs[0]
	s.favicon = hrefs[0]
	s.mu.Unlock()
	if changed {
		s.emit(core.SurfaceEvent{Kind: core.EventFavicon, Favicons: hrefs})
	}
}

func defaultFavicon(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/favicon.ico"
}

func (s *surface) emit(ev core.SurfaceEvent) {
	s.b.post(func() {
		if s.isClosed() {
			return
		}
		s.handler(ev)
	})
}

package cdpsurface

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pkt.systems/blinx/core"
	"pkt.systems/blinx/internal/downloads"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

const commandTimeout = 15 * time.Second

// DownloadSink receives download lifecycle notifications.
// *downloads.Tracker implements it.
type DownloadSink interface {
	Started(ev downloads.Started)
	Progress(ev downloads.Progress)
	Completed(ev downloads.Completed)
	Failed(ev downloads.Failed)
}

// Options configures the Chromium instance.
type Options struct {
	// RemoteURL attaches to a running Chromium DevTools endpoint instead of
	// launching a new process.
	RemoteURL    string
	ExecPath     string
	Headless     bool
	UserDataDir  string
	WindowWidth  int
	WindowHeight int
	// Flags are extra command line switches, with or without leading dashes.
	// "name=value" sets a value, a bare name enables the switch.
	Flags       []string
	DownloadDir string
	Theme       schema.ThemeName
	// Post schedules fn on the UI loop. Nil runs fn inline.
	Post      func(fn func())
	Downloads DownloadSink
	Logger    pslog.Logger
}

// Browser owns one Chromium process (or remote connection) and hands out a
// page target per tab.
type Browser struct {
	log         pslog.Logger
	post        func(fn func())
	sink        DownloadSink
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu          sync.Mutex
	surfaces    map[target.ID]*surface
	front       target.ID
	theme       schema.ThemeName
	downloadDir string
	closed      bool
}

// Start launches (or attaches to) Chromium and enables download events.
// The returned Browser lives until Close, independent of ctx cancellation.
func Start(ctx context.Context, opts Options) (*Browser, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	log := logger.With("component", "cdp")
	base := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if remote := strings.TrimSpace(opts.RemoteURL); remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, remote)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, allocatorOptions(opts)...)
	}
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("cdp log", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Warn("cdp error", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithDebugf(func(format string, args ...any) {
			log.Trace("cdp debug", "msg", fmt.Sprintf(format, args...))
		}),
	)

	post := opts.Post
	if post == nil {
		post = func(fn func()) { fn() }
	}
	theme := opts.Theme
	if theme == "" {
		theme = schema.DefaultTheme
	}
	b := &Browser{
		log:         log,
		post:        post,
		sink:        opts.Downloads,
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		surfaces:    make(map[target.ID]*surface),
		theme:       theme,
	}
	chromedp.ListenBrowser(browserCtx, b.onBrowserEvent)

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", schema.ErrSurfaceUnavailable, err)
	}
	if err := b.browserDo(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(ctx)
	}); err != nil {
		log.Warn("cdp target discovery failed", "err", err)
	}
	if opts.DownloadDir != "" {
		if err := b.SetDownloadDir(opts.DownloadDir); err != nil {
			log.Warn("cdp download behavior failed", "dir", opts.DownloadDir, "err", err)
		}
	}
	log.Info("cdp browser started", "remote", opts.RemoteURL != "", "headless", opts.Headless)
	return b, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		options = append(options, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		options = append(options, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		options = append(options, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	for _, raw := range opts.Flags {
		name, value, ok := strings.Cut(strings.TrimLeft(strings.TrimSpace(raw), "-"), "=")
		if name == "" {
			continue
		}
		if ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(name, true))
	}
	return options
}

// NewSurface opens a new page target for a tab and starts loading req.URL.
func (b *Browser) NewSurface(ctx context.Context, req core.SurfaceRequest) (core.Surface, error) {
	return b.newSurface(ctx, req)
}

// SetDownloadDir directs downloads into dir and enables download events.
func (b *Browser) SetDownloadDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("download dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := b.browserDo(func(ctx context.Context) error {
		return browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(abs).
			WithEventsEnabled(true).
			Do(ctx)
	}); err != nil {
		return err
	}
	b.mu.Lock()
	b.downloadDir = abs
	b.mu.Unlock()
	b.log.Debug("cdp download dir set", "dir", abs)
	return nil
}

// ApplyTheme switches the prefers-color-scheme media feature on every tab.
func (b *Browser) ApplyTheme(theme schema.ThemeName) {
	b.mu.Lock()
	b.theme = theme
	surfaces := make([]*surface, 0, len(b.surfaces))
	for _, s := range b.surfaces {
		surfaces = append(surfaces, s)
	}
	b.mu.Unlock()
	for _, s := range surfaces {
		s.applyTheme(theme)
	}
}

// Close shuts Chromium down (or disconnects from a remote instance) and
// releases every surface.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	surfaces := make([]*surface, 0, len(b.surfaces))
	for _, s := range b.surfaces {
		surfaces = append(surfaces, s)
	}
	b.surfaces = make(map[target.ID]*surface)
	b.mu.Unlock()

	for _, s := range surfaces {
		s.release()
	}
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.log.Warn("cdp browser close failed", "err", err)
		return err
	}
	b.log.Info("cdp browser closed")
	return nil
}

// Done is closed when the browser context ends, for example when the
// Chromium process exits.
func (b *Browser) Done() <-chan struct{} {
	return b.ctx.Done()
}

func (b *Browser) browserDo(fn func(ctx context.Context) error) error {
	c := chromedp.FromContext(b.ctx)
	if c == nil || c.Browser == nil {
		return schema.ErrSurfaceUnavailable
	}
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	return fn(cdp.WithExecutor(ctx, c.Browser))
}

func (b *Browser) register(s *surface) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.surfaces[s.target] = s
	return true
}

func (b *Browser) forget(id target.ID) {
	b.mu.Lock()
	delete(b.surfaces, id)
	if b.front == id {
		b.front = ""
	}
	b.mu.Unlock()
}

func (b *Browser) lookup(id target.ID) *surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaces[id]
}

func (b *Browser) setFront(id target.ID) {
	b.mu.Lock()
	b.front = id
	b.mu.Unlock()
}

// windowTarget returns a target hosted by the shell window: the most
// recently shown tab, else the page target chromedp attached at startup.
func (b *Browser) windowTarget() target.ID {
	b.mu.Lock()
	front := b.front
	b.mu.Unlock()
	if front != "" {
		return front
	}
	if c := chromedp.FromContext(b.ctx); c != nil && c.Target != nil {
		return c.Target.TargetID
	}
	return ""
}

func (b *Browser) currentTheme() schema.ThemeName {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

func (b *Browser) currentDownloadDir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.downloadDir
}

// onBrowserEvent runs on the chromedp reader goroutine and must not block.
func (b *Browser) onBrowserEvent(ev any) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		b.downloadStarted(e)
	case *browser.EventDownloadProgress:
		b.downloadProgress(e)
	case *target.EventTargetInfoChanged:
		if e.TargetInfo == nil || e.TargetInfo.Type != "page" {
			return
		}
		if s := b.lookup(e.TargetInfo.TargetID); s != nil {
			s.titleChanged(e.TargetInfo.Title)
		}
	case *target.EventTargetCreated:
		info := e.TargetInfo
		if info == nil || info.Type != "page" || info.OpenerID == "" {
			return
		}
		if b.lookup(info.OpenerID) == nil {
			return
		}
		// Popups are reopened as tabs from page.EventWindowOpen.
		go b.closePopup(info.TargetID)
	}
}

func (b *Browser) closePopup(id target.ID) {
	if err := b.browserDo(func(ctx context.Context) error {
		return target.CloseTarget(id).Do(ctx)
	}); err != nil {
		b.log.Debug("cdp popup close failed", "target", string(id), "err", err)
	}
}

func (b *Browser) downloadStarted(e *browser.EventDownloadWillBegin) {
	if b.sink == nil {
		return
	}
	path := ""
	if dir := b.currentDownloadDir(); dir != "" && e.SuggestedFilename != "" {
		path = filepath.Join(dir, e.SuggestedFilename)
	}
	started := downloads.Started{
		ID:       schema.DownloadID(e.GUID),
		Filename: e.SuggestedFilename,
		URL:      e.URL,
		Path:     path,
	}
	b.post(func() { b.sink.Started(started) })
}

func (b *Browser) downloadProgress(e *browser.EventDownloadProgress) {
	if b.sink == nil {
		return
	}
	id := schema.DownloadID(e.GUID)
	switch e.State {
	case browser.DownloadProgressStateCompleted:
		b.post(func() { b.sink.Completed(downloads.Completed{ID: id}) })
	case browser.DownloadProgressStateCanceled:
		b.post(func() { b.sink.Failed(downloads.Failed{ID: id, Error: "canceled"}) })
	default:
		if e.TotalBytes <= 0 {
			return
		}
		progress := downloads.Progress{
			ID:      id,
			Percent: e.ReceivedBytes / e.TotalBytes * 100,
			Size:    int64(e.TotalBytes),
		}
		b.post(func() { b.sink.Progress(progress) })
	}
}

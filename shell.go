package blinx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"pkt.systems/blinx/core"
	"pkt.systems/blinx/internal/bookmarks"
	"pkt.systems/blinx/internal/downloads"
	"pkt.systems/blinx/internal/eventbus"
	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/internal/settings"
	"pkt.systems/blinx/internal/uiloop"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// StateFile is the record store document holding settings and the download
// history. Bookmarks live in their own document.
const StateFile = "store.json"

// Engine is the rendering backend the shell drives.
type Engine interface {
	core.SurfaceFactory
	ApplyTheme(theme schema.ThemeName)
	SetDownloadDir(dir string) error
	Window(onClose func()) core.WindowController
	Close() error
	// Done is closed when the backend goes away on its own.
	Done() <-chan struct{}
}

// EngineParams is what the shell hands the engine constructor.
type EngineParams struct {
	// Post schedules fn on the UI loop.
	Post        func(fn func())
	Downloads   *downloads.Tracker
	Theme       schema.ThemeName
	DownloadDir string
	Logger      pslog.Logger
}

// EngineFunc builds the rendering backend once the shell's stores and loop
// exist.
type EngineFunc func(ctx context.Context, params EngineParams) (Engine, error)

// ShellDeps captures dependencies required to build the shell.
type ShellDeps struct {
	Engine EngineFunc
	// EventSink receives every shell event next to the event bus. When it
	// also implements downloads.Sink it receives download updates too.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// Shell owns one browser window: the profile lock, the persisted stores,
// the UI loop, the event bus, the tab session manager and the engine.
type Shell struct {
	cfg schema.ShellConfig
	log pslog.Logger

	lock        *persist.ProfileLock
	state       *persist.Store
	bookmarkDoc *persist.Store
	settings    *settings.Store
	bookmarks   *bookmarks.Store
	downloads   *downloads.Tracker
	loop        *uiloop.Loop
	bus         *eventbus.Bus
	engine      Engine
	manager     *core.Manager

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	quit     chan struct{}
	quitOnce sync.Once
}

// New locks the profile, opens its stores and builds the engine and the
// tab session manager. Nothing is shown until Start.
func New(ctx context.Context, cfg schema.ShellConfig, deps ShellDeps) (*Shell, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Engine == nil {
		return nil, errors.New("engine is required")
	}
	normalized, err := schema.NormalizeShellConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}

	lock, err := persist.LockProfile(normalized.ProfileDir)
	if err != nil {
		return nil, err
	}
	s := &Shell{
		cfg:  normalized,
		log:  logger.With("component", "shell"),
		lock: lock,
		quit: make(chan struct{}),
	}
	ok := false
	defer func() {
		if ok {
			return
		}
		if err := s.closeStores(); err != nil {
			s.log.Warn("shell store close failed", "err", err)
		}
		_ = lock.Release()
	}()

	if s.state, err = persist.Open(filepath.Join(normalized.ProfileDir, StateFile), logger); err != nil {
		return nil, err
	}
	if s.bookmarkDoc, err = persist.Open(filepath.Join(normalized.ProfileDir, bookmarks.FileName), logger); err != nil {
		return nil, err
	}

	s.loop = uiloop.New(logger)
	s.bus = eventbus.New(logger)
	fanout := eventFanout{sinks: []core.EventSink{s.bus}, downloads: []downloads.Sink{s.bus}}
	if deps.EventSink != nil {
		fanout.sinks = append(fanout.sinks, deps.EventSink)
		if sink, ok := deps.EventSink.(downloads.Sink); ok {
			fanout.downloads = append(fanout.downloads, sink)
		}
	}

	s.settings = settings.New(s.state, settings.Defaults(normalized), logger)
	s.bookmarks = bookmarks.New(s.bookmarkDoc, logger)
	s.downloads = downloads.New(s.state, fanout, logger)

	engine, err := deps.Engine(ctx, EngineParams{
		Post:        s.post,
		Downloads:   s.downloads,
		Theme:       s.settings.Theme(),
		DownloadDir: s.settings.Get().DownloadPath,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.engine = engine

	manager, err := core.NewManager(normalized, core.ManagerDeps{
		SurfaceFactory: engine,
		Settings:       s.settings,
		Bookmarks:      s.bookmarks,
		EventSink:      fanout,
		Window:         engine.Window(s.Quit),
		Logger:         logger,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	s.manager = manager
	s.settings.OnTheme(settings.ThemeFunc(s.themeChanged))
	ok = true
	s.log.Info("shell ready", "profile", normalized.ProfileDir)
	return s, nil
}

// Start runs the UI loop and the store watchers and opens the first tab.
// When the homepage cannot be shown a blank tab is opened instead. ctx bounds
// the lifetime of the loop and the watchers, so it must outlive the shell.
func (s *Shell) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return errors.New("shell already started")
	}
	s.ctx, s.cancel = context.WithCancel(pslog.ContextWithLogger(ctx, s.log))
	s.started = true
	runCtx := s.ctx
	s.mu.Unlock()

	go func() {
		if err := s.loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("ui loop stopped", "err", err)
		}
	}()
	go s.watch(runCtx, "state", s.state, s.stateChanged)
	go s.watch(runCtx, "bookmarks", s.bookmarkDoc, s.bookmarksChanged)
	go func() {
		select {
		case <-s.engine.Done():
			s.log.Warn("engine exited")
			s.Quit()
		case <-runCtx.Done():
		}
	}()

	return s.do(ctx, func() error {
		if _, err := s.manager.CreateTab(runCtx, ""); err != nil {
			s.log.Warn("first tab failed, opening blank tab", "err", err)
			if err := s.openBlankTab(err); err != nil {
				return fmt.Errorf("first tab: %w", err)
			}
		}
		return nil
	})
}

// openBlankTab is the last resort when the manager could not create a
// default tab. It must run on the UI loop.
func (s *Shell) openBlankTab(cause error) error {
	if _, err := s.manager.CreateTab(s.runCtx(), schema.BlankURL); err != nil {
		return errors.Join(cause, err)
	}
	return nil
}

// Done is closed once the user quits or the window goes away.
func (s *Shell) Done() <-chan struct{} {
	return s.quit
}

// Quit asks the shell to end. The owner is expected to call Shutdown.
func (s *Shell) Quit() {
	s.quitOnce.Do(func() {
		s.log.Info("shell quit requested")
		close(s.quit)
	})
}

// Shutdown destroys every surface, flushes the stores and releases the
// profile.
func (s *Shell) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	s.log.Info("shell stop requested")
	var errs []error
	if started {
		if err := s.loop.Do(ctx, func() { s.manager.Shutdown(ctx) }); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tabs: %w", err))
		}
	}
	s.loop.Close()
	if started {
		select {
		case <-s.loop.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("ui loop: %w", ctx.Err()))
		}
	}
	if cancel != nil {
		cancel()
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if err := s.closeStores(); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock.Release(); err != nil {
		errs = append(errs, fmt.Errorf("profile lock: %w", err))
	}
	s.Quit()
	if len(errs) > 0 {
		s.log.Warn("shell stop completed with errors", "err", errors.Join(errs...))
		return errors.Join(errs...)
	}
	s.log.Info("shell stopped")
	return nil
}

// Subscribe returns a channel of shell events for the given types, or for
// every type when none are given.
func (s *Shell) Subscribe(types ...eventbus.EventType) (<-chan eventbus.Event, func()) {
	return s.bus.Subscribe(types...)
}

// Theme returns the theme the current settings imply.
func (s *Shell) Theme() schema.ThemeName {
	return s.settings.Theme()
}

// Config returns the normalized shell configuration.
func (s *Shell) Config() schema.ShellConfig {
	return s.cfg
}

func (s *Shell) post(fn func()) {
	if !s.loop.Post(fn) {
		s.log.Debug("ui loop closed, dropping work")
	}
}

// do runs fn on the UI loop and waits for its result.
func (s *Shell) do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

// runCtx is the context handed to the manager. It outlives single commands
// so surface handlers keep working after the command returns.
func (s *Shell) runCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Shell) themeChanged(theme schema.ThemeName) {
	s.post(func() {
		s.manager.ApplyTheme(theme)
		s.engine.ApplyTheme(theme)
	})
}

func (s *Shell) applyDownloadDir(dir string) {
	if err := s.engine.SetDownloadDir(dir); err != nil {
		s.log.Warn("download dir update failed", "dir", dir, "err", err)
	}
}

func (s *Shell) watch(ctx context.Context, name string, store *persist.Store, fn func(keys []string)) {
	if err := store.Watch(ctx, fn); err != nil {
		s.log.Warn("store watch stopped", "store", name, "err", err)
	}
}

func (s *Shell) stateChanged(keys []string) {
	for _, key := range keys {
		if key != settings.Key {
			continue
		}
		prev := s.settings.Get()
		s.settings.Reload()
		next := s.settings.Get()
		s.log.Info("settings changed on disk")
		if prev.DownloadPath != next.DownloadPath {
			s.applyDownloadDir(next.DownloadPath)
		}
		s.post(s.manager.RefreshChrome)
	}
}

func (s *Shell) bookmarksChanged(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.bookmarks.Reload()
	s.log.Info("bookmarks changed on disk", "keys", len(keys))
	s.post(s.manager.RefreshChrome)
}

func (s *Shell) closeStores() error {
	var errs []error
	for _, store := range []*persist.Store{s.state, s.bookmarkDoc} {
		if store == nil {
			continue
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", store.Path(), err))
		}
	}
	return errors.Join(errs...)
}

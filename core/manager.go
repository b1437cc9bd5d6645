package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/blinx/internal/internalpage"
	"pkt.systems/blinx/internal/logx"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// Manager owns the ordered tab collection and the single active tab.
//
// Manager is not safe for concurrent use. Every method, and every surface
// handler, must run on the UI loop.
type Manager struct {
	cfg       schema.ShellConfig
	factory   SurfaceFactory
	settings  SettingsSource
	bookmarks BookmarkIndex
	sink      EventSink
	window    WindowController
	log       pslog.Logger

	tabs   map[schema.TabID]*Tab
	order  []schema.TabID
	active schema.TabID
	issued map[schema.TabID]struct{}
	theme  schema.ThemeName
	chrome schema.ChromeState
}

// navPlan is the outcome of normalizing user input for one tab.
type navPlan struct {
	load     string
	display  string
	internal string
	title    string
	err      error
}

// NewManager constructs the tab session manager.
func NewManager(cfg schema.ShellConfig, deps ManagerDeps) (*Manager, error) {
	normalized, err := schema.NormalizeShellConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.SurfaceFactory == nil {
		return nil, errors.New("surface factory is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	m := &Manager{
		cfg:       normalized,
		factory:   deps.SurfaceFactory,
		settings:  deps.Settings,
		bookmarks: deps.Bookmarks,
		sink:      deps.EventSink,
		window:    deps.Window,
		log:       logger,
		tabs:      make(map[schema.TabID]*Tab),
		issued:    make(map[schema.TabID]struct{}),
		theme:     normalized.DefaultTheme,
	}
	if m.settings != nil {
		m.theme = schema.ThemeFor(m.settings.Get().DarkMode)
	}
	m.chrome = m.chromeState()
	return m, nil
}

// CreateTab opens a tab at requestedURL, or at the homepage when it is
// blank, and makes it active. A surface that cannot be created leaves the
// tab collection unchanged and returns an error wrapping
// schema.ErrSurfaceUnavailable. Rejected input is reported on the new tab
// only.
func (m *Manager) CreateTab(ctx context.Context, requestedURL string) (*Tab, error) {
	input := strings.TrimSpace(requestedURL)
	if input == "" {
		input = m.homepage()
	}
	id := m.newID()
	log := logx.WithTabID(m.log, id)
	plan := m.plan(input)

	tab := newTab(id, schema.BlankURL)
	if plan.display != "" {
		tab.url = plan.display
	}
	tab.internal = plan.internal
	if plan.title != "" {
		tab.title = plan.title
	}
	surface, err := m.factory.NewSurface(ctx, SurfaceRequest{
		TabID:   id,
		URL:     plan.load,
		Handler: m.handlerFor(ctx, id),
	})
	if err == nil && surface == nil {
		err = errors.New("factory returned no surface")
	}
	if err != nil {
		log.Warn("manager tab create failed", "err", err)
		return nil, fmt.Errorf("%w: %w", schema.ErrSurfaceUnavailable, err)
	}
	tab.surface = surface
	m.tabs[id] = tab
	m.order = append(m.order, id)
	logx.WithURL(log, tab.url).Info("manager tab created", "tabs", len(m.order))
	if plan.err != nil {
		m.reportNavError(log, id, input, plan.err)
	}
	m.emitTab(schema.TabEventCreated, tab, len(m.order)-1)
	if err := m.SetActiveTab(ctx, id); err != nil {
		return tab, err
	}
	return tab, nil
}

// CloseTab destroys a tab's surface and removes it. Unknown ids are ignored.
// When the active tab closes the tab now at its index, then the one before
// it, becomes active. Closing the last tab opens a fresh homepage tab.
func (m *Manager) CloseTab(ctx context.Context, id schema.TabID) error {
	idx := m.indexOf(id)
	if idx < 0 {
		return nil
	}
	tab := m.tabs[id]
	log := logx.WithTabID(m.log, id)
	wasActive := m.active == id

	delete(m.tabs, id)
	m.order = removeTabID(m.order, id)
	tab.state = TabClosed
	if wasActive {
		m.active = ""
	}
	if err := tab.surface.Destroy(ctx); err != nil {
		log.Warn("manager surface destroy failed", "err", err)
	}
	log.Info("manager tab closed", "tabs", len(m.order), "was_active", wasActive)
	m.emitTab(schema.TabEventClosed, tab, idx)

	if len(m.order) == 0 {
		log.Debug("manager last tab closed, opening default")
		_, err := m.CreateTab(ctx, "")
		return err
	}
	if !wasActive {
		return nil
	}
	next := idx
	if next >= len(m.order) {
		next = idx - 1
	}
	if next < 0 {
		next = 0
	}
	return m.SetActiveTab(ctx, m.order[next])
}

// SetActiveTab deactivates the current tab, then activates id.
func (m *Manager) SetActiveTab(ctx context.Context, id schema.TabID) error {
	tab, ok := m.tabs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, schema.ErrTabNotFound)
	}
	if m.active == id && tab.state == TabActive {
		m.refreshChrome()
		return nil
	}
	if prev, ok := m.tabs[m.active]; ok && prev != tab {
		m.deactivate(ctx, prev)
	}
	m.active = id
	tab.state = TabActive
	log := logx.WithTabID(m.log, id)
	if err := tab.surface.Show(ctx); err != nil {
		log.Warn("manager surface show failed", "err", err)
	}
	tab.refreshNavigation()
	log.Debug("manager tab activated")
	m.emitTab(schema.TabEventActivated, tab, m.indexOf(id))
	m.refreshChrome()
	return nil
}

func (m *Manager) deactivate(ctx context.Context, tab *Tab) {
	tab.state = TabInactive
	if err := tab.surface.Hide(ctx); err != nil {
		logx.WithTabID(m.log, tab.id).Warn("manager surface hide failed", "err", err)
	}
	m.emitTab(schema.TabEventDeactivated, tab, m.indexOf(tab.id))
}

// MoveTab moves a tab to targetIndex in display order. The index is clamped
// to the tab strip.
func (m *Manager) MoveTab(ctx context.Context, id schema.TabID, targetIndex int) error {
	from := m.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%s: %w", id, schema.ErrTabNotFound)
	}
	to := targetIndex
	if to < 0 {
		to = 0
	}
	if to > len(m.order)-1 {
		to = len(m.order) - 1
	}
	if to == from {
		return nil
	}
	m.order = removeTabID(m.order, id)
	m.order = append(m.order, "")
	copy(m.order[to+1:], m.order[to:])
	m.order[to] = id
	logx.WithTabID(m.log, id).Debug("manager tab moved", "from", from, "to", to)
	m.emitTab(schema.TabEventMoved, m.tabs[id], to)
	return nil
}

// DropTab finishes a drag: the tab is inserted before the first tab whose
// horizontal midpoint lies right of pointerX, or appended. midpoints holds
// one entry per tab in display order.
func (m *Manager) DropTab(ctx context.Context, id schema.TabID, pointerX float64, midpoints []float64) error {
	from := m.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%s: %w", id, schema.ErrTabNotFound)
	}
	if len(midpoints) != len(m.order) {
		return fmt.Errorf("drop tab: %d midpoints for %d tabs", len(midpoints), len(m.order))
	}
	before := len(m.order)
	for i, mid := range midpoints {
		if mid > pointerX {
			before = i
			break
		}
	}
	to := before
	if from < before {
		to = before - 1
	}
	return m.MoveTab(ctx, id, to)
}

// Navigate loads URL bar input in the active tab. Rejected input leaves the
// tab on its current location and is returned as a local error.
func (m *Manager) Navigate(ctx context.Context, input string) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	log := logx.WithTabID(m.log, tab.id)
	plan := m.plan(input)
	if plan.err != nil {
		if plan.title != "" && plan.title != tab.title {
			tab.title = plan.title
			m.emitTab(schema.TabEventUpdated, tab, m.indexOf(tab.id))
		}
		log.Warn("manager tab navigation rejected", "input", input, "err", plan.err)
		return plan.err
	}
	tab.internal = plan.internal
	tab.url = plan.display
	if err := tab.surface.Load(ctx, plan.load); err != nil {
		log.Warn("manager tab navigate failed", "err", err)
		return err
	}
	logx.WithURL(log, tab.url).Debug("manager tab navigate")
	m.emitTab(schema.TabEventUpdated, tab, m.indexOf(tab.id))
	m.refreshChrome()
	return nil
}

// Back navigates the active tab back when history allows it.
func (m *Manager) Back(ctx context.Context) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	if !tab.surface.CanGoBack() {
		return nil
	}
	return tab.surface.GoBack(ctx)
}

// Forward navigates the active tab forward when history allows it.
func (m *Manager) Forward(ctx context.Context) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	if !tab.surface.CanGoForward() {
		return nil
	}
	return tab.surface.GoForward(ctx)
}

// ReloadOrStop stops the active tab while it loads and reloads it otherwise.
func (m *Manager) ReloadOrStop(ctx context.Context) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	if tab.loading {
		return tab.surface.Stop(ctx)
	}
	return tab.surface.Reload(ctx)
}

// Reload reloads the active tab on its existing surface.
func (m *Manager) Reload(ctx context.Context) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	return tab.surface.Reload(ctx)
}

// Stop halts loading in the active tab. The resulting canceled load is benign.
func (m *Manager) Stop(ctx context.Context) error {
	tab, err := m.activeTab()
	if err != nil {
		return err
	}
	return tab.surface.Stop(ctx)
}

// ToggleBookmark bookmarks or un-bookmarks the active tab and reports
// whether it is bookmarked afterwards.
func (m *Manager) ToggleBookmark(ctx context.Context) (bool, error) {
	if m.bookmarks == nil {
		return false, errors.New("bookmarks unavailable")
	}
	tab, err := m.activeTab()
	if err != nil {
		return false, err
	}
	added, err := m.bookmarks.Toggle(tab.url, tab.title, tab.favicon)
	if err != nil {
		return false, err
	}
	logx.WithTabID(m.log, tab.id).Info("manager bookmark toggled", "bookmarked", added)
	m.refreshChrome()
	return added, nil
}

// OpenBookmark loads a bookmark in the active tab or in a new tab.
func (m *Manager) OpenBookmark(ctx context.Context, id schema.BookmarkID, newTab bool) error {
	if m.bookmarks == nil {
		return errors.New("bookmarks unavailable")
	}
	bookmark, ok := m.bookmarks.Get(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, schema.ErrBookmarkNotFound)
	}
	if newTab || m.active == "" {
		_, err := m.CreateTab(ctx, bookmark.URL)
		return err
	}
	return m.Navigate(ctx, bookmark.URL)
}

// ApplyTheme switches the chrome palette.
func (m *Manager) ApplyTheme(theme schema.ThemeName) {
	m.theme = theme
	m.refreshChrome()
}

// Minimize asks the host window to minimize.
func (m *Manager) Minimize() {
	if m.window != nil {
		m.window.Minimize()
	}
}

// MaximizeOrRestore toggles the host window between maximized and normal.
func (m *Manager) MaximizeOrRestore() {
	if m.window != nil {
		m.window.MaximizeOrRestore()
	}
}

// CloseWindow asks the host window to close.
func (m *Manager) CloseWindow() {
	if m.window != nil {
		m.window.Close()
	}
}

// Shutdown destroys every surface without opening a replacement tab.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, id := range m.order {
		tab := m.tabs[id]
		tab.state = TabClosed
		if err := tab.surface.Destroy(ctx); err != nil {
			logx.WithTabID(m.log, id).Warn("manager surface destroy failed", "err", err)
		}
	}
	m.log.Info("manager shutdown", "tabs", len(m.order))
	m.tabs = make(map[schema.TabID]*Tab)
	m.order = nil
	m.active = ""
}

// Tabs returns snapshots in display order.
func (m *Manager) Tabs() []schema.TabSnapshot {
	out := make([]schema.TabSnapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tabs[id].Snapshot())
	}
	return out
}

// Active returns the active tab snapshot.
func (m *Manager) Active() (schema.TabSnapshot, bool) {
	tab, ok := m.tabs[m.active]
	if !ok {
		return schema.TabSnapshot{}, false
	}
	return tab.Snapshot(), true
}

// Tab looks up an open tab.
func (m *Manager) Tab(id schema.TabID) (*Tab, bool) {
	tab, ok := m.tabs[id]
	return tab, ok
}

// TabAt returns the tab at a display index.
func (m *Manager) TabAt(index int) (*Tab, bool) {
	if index < 0 || index >= len(m.order) {
		return nil, false
	}
	return m.tabs[m.order[index]], true
}

// IndexOf returns the display index of id, or -1.
func (m *Manager) IndexOf(id schema.TabID) int {
	return m.indexOf(id)
}

// Chrome returns the toolbar state for the active tab.
func (m *Manager) Chrome() schema.ChromeState {
	return m.chrome
}

// RefreshChrome recomputes the toolbar state, for example after bookmarks or
// settings changed outside the manager.
func (m *Manager) RefreshChrome() {
	m.refreshChrome()
}

// Len returns the number of open tabs.
func (m *Manager) Len() int {
	return len(m.order)
}

func (m *Manager) handlerFor(ctx context.Context, id schema.TabID) SurfaceHandler {
	base := context.WithoutCancel(ctx)
	return func(ev SurfaceEvent) {
		m.dispatch(base, id, ev)
	}
}

func (m *Manager) dispatch(ctx context.Context, id schema.TabID, ev SurfaceEvent) {
	tab, ok := m.tabs[id]
	if !ok || tab.state == TabClosed {
		m.log.Trace("manager event dropped", "tab", id, "event", ev.Kind.String())
		return
	}
	log := logx.WithTabID(m.log, id)
	switch ev.Kind {
	case EventNewWindow:
		log.Debug("manager popup routed to tab")
		if _, err := m.CreateTab(ctx, ev.URL); err != nil {
			log.Warn("manager popup tab failed", "err", err)
		}
		return
	case EventLoadFailed:
		if ev.Canceled {
			log.Debug("manager tab load canceled")
		} else {
			log.Warn("manager tab load failed", "err", ev.ErrorText)
		}
	}
	if !tab.apply(ev) {
		return
	}
	kind := schema.TabEventUpdated
	if ev.Kind == EventLoadStart || ev.Kind == EventLoadStop {
		kind = schema.TabEventLoading
	}
	m.emitTab(kind, tab, m.indexOf(id))
	if id == m.active {
		m.refreshChrome()
	}
}

func (m *Manager) plan(input string) navPlan {
	target, err := NormalizeURL(input, m.currentSettings().SearchEngine)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidInternalURL) {
			return navPlan{display: schema.BlankURL, title: schema.InvalidInternalTitle, err: err}
		}
		return navPlan{err: err}
	}
	if internalpage.IsInternal(target) {
		page, err := internalpage.Resolve(internalpage.Path(target), m.currentSettings())
		if err != nil {
			return navPlan{display: schema.BlankURL, title: schema.InvalidInternalTitle, err: err}
		}
		return navPlan{load: page, display: target, internal: target}
	}
	return navPlan{load: target, display: target}
}

func (m *Manager) reportNavError(log pslog.Logger, id schema.TabID, input string, err error) {
	log.Warn("manager tab navigation rejected", "input", input, "err", err)
	if m.sink != nil {
		m.sink.OnNotice(schema.NoticeEvent{Level: schema.NoticeError, TabID: id, Message: err.Error()})
	}
}

func (m *Manager) currentSettings() schema.Settings {
	if m.settings != nil {
		current := m.settings.Get()
		if current.SearchEngine == "" {
			current.SearchEngine = m.cfg.SearchEngine
		}
		if current.Homepage == "" {
			current.Homepage = m.cfg.Homepage
		}
		return current
	}
	return schema.Settings{
		Homepage:            m.cfg.Homepage,
		SearchEngine:        m.cfg.SearchEngine,
		DarkMode:            m.cfg.DefaultTheme == schema.ThemeDark,
		DownloadPath:        m.cfg.DownloadDir,
		BookmarksBarVisible: true,
	}
}

func (m *Manager) homepage() string {
	return m.currentSettings().Homepage
}

func (m *Manager) activeTab() (*Tab, error) {
	tab, ok := m.tabs[m.active]
	if !ok {
		return nil, schema.ErrNoActiveTab
	}
	return tab, nil
}

func (m *Manager) newID() schema.TabID {
	for {
		id := newTabID()
		if _, used := m.issued[id]; used {
			continue
		}
		m.issued[id] = struct{}{}
		return id
	}
}

func (m *Manager) indexOf(id schema.TabID) int {
	for i, candidate := range m.order {
		if candidate == id {
			return i
		}
	}
	return -1
}

func (m *Manager) chromeState() schema.ChromeState {
	state := schema.ChromeState{
		Loading:        schema.AffordanceReload,
		Theme:          m.theme,
		BookmarksBarOn: m.currentSettings().BookmarksBarVisible,
	}
	tab, ok := m.tabs[m.active]
	if !ok {
		return state
	}
	state.ActiveTab = tab.id
	state.URLBar = tab.url
	state.BackEnabled = tab.canGoBack
	state.ForwardEnabled = tab.canGoForward
	if tab.loading {
		state.Loading = schema.AffordanceStop
	}
	if m.bookmarks != nil {
		state.Bookmarked = m.bookmarks.IsBookmarked(tab.url)
	}
	return state
}

func (m *Manager) refreshChrome() {
	state := m.chromeState()
	if state == m.chrome {
		return
	}
	m.chrome = state
	if m.sink != nil {
		m.sink.OnChromeEvent(schema.ChromeEvent{State: state})
	}
}

func (m *Manager) emitTab(kind schema.TabEventType, tab *Tab, index int) {
	if m.sink == nil || tab == nil {
		return
	}
	m.sink.OnTabEvent(schema.TabEvent{
		Type:      kind,
		Tab:       tab.Snapshot(),
		ActiveTab: m.active,
		Index:     index,
	})
}

func removeTabID(order []schema.TabID, id schema.TabID) []schema.TabID {
	for i, candidate := range order {
		if candidate == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

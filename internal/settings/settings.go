package settings

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// Key is the record store key holding the settings document.
const Key = "settings"

// ThemeApplier reacts to theme changes.
type ThemeApplier interface {
	ApplyTheme(theme schema.ThemeName)
}

// ThemeFunc adapts a function to ThemeApplier.
type ThemeFunc func(theme schema.ThemeName)

// ApplyTheme calls f.
func (f ThemeFunc) ApplyTheme(theme schema.ThemeName) { f(theme) }

// Store is a typed view of user preferences over a record store.
type Store struct {
	mu       sync.Mutex
	store    *persist.Store
	log      pslog.Logger
	defaults schema.Settings
	current  schema.Settings
	appliers []ThemeApplier
}

// Defaults derives the default preferences from the shell config.
func Defaults(cfg schema.ShellConfig) schema.Settings {
	return schema.Settings{
		Homepage:            cfg.Homepage,
		SearchEngine:        cfg.SearchEngine,
		DarkMode:            cfg.DefaultTheme == schema.ThemeDark,
		EnableNotifications: true,
		DownloadPath:        cfg.DownloadDir,
		BookmarksBarVisible: true,
	}
}

// New loads settings from store, writing defaults back when none exist.
func New(store *persist.Store, defaults schema.Settings, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if store == nil {
		store = persist.NewMemory(logger)
	}
	s := &Store{
		store:    store,
		log:      logger.With("component", "settings"),
		defaults: defaults,
	}
	s.current = s.read()
	if !store.Has(Key) {
		s.save(s.current)
	}
	return s
}

// Get returns a copy of the current settings.
func (s *Store) Get() schema.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Homepage returns the configured homepage.
func (s *Store) Homepage() string {
	return s.Get().Homepage
}

// SearchTemplate returns the configured search engine template.
func (s *Store) SearchTemplate() string {
	return s.Get().SearchEngine
}

// Theme returns the theme implied by the dark mode preference.
func (s *Store) Theme() schema.ThemeName {
	return schema.ThemeFor(s.Get().DarkMode)
}

// OnTheme registers an applier and applies the current theme to it.
func (s *Store) OnTheme(applier ThemeApplier) {
	if applier == nil {
		return
	}
	s.mu.Lock()
	s.appliers = append(s.appliers, applier)
	theme := schema.ThemeFor(s.current.DarkMode)
	s.mu.Unlock()
	applier.ApplyTheme(theme)
}

// Value returns the string form of a single setting.
func (s *Store) Value(key string) (string, error) {
	normalized, err := schema.NormalizeSettingKey(key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	current := s.Get()
	switch normalized {
	case schema.SettingHomepage:
		return current.Homepage, nil
	case schema.SettingSearchEngine:
		return current.SearchEngine, nil
	case schema.SettingDarkMode:
		return strconv.FormatBool(current.DarkMode), nil
	case schema.SettingEnableNotifications:
		return strconv.FormatBool(current.EnableNotifications), nil
	case schema.SettingDownloadPath:
		return current.DownloadPath, nil
	default:
		return strconv.FormatBool(current.BookmarksBarVisible), nil
	}
}

// Set parses and stores a single setting.
func (s *Store) Set(key, value string) error {
	normalized, err := schema.NormalizeSettingKey(key)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	value = strings.TrimSpace(value)
	var apply func(*schema.Settings)
	switch normalized {
	case schema.SettingHomepage:
		if err := validateHomepage(value); err != nil {
			return err
		}
		apply = func(cur *schema.Settings) { cur.Homepage = value }
	case schema.SettingSearchEngine:
		if err := schema.ValidateSearchTemplate(value); err != nil {
			return fmt.Errorf("%s: %w", normalized, err)
		}
		apply = func(cur *schema.Settings) { cur.SearchEngine = value }
	case schema.SettingDownloadPath:
		if value == "" {
			return fmt.Errorf("%s: %w", normalized, schema.ErrInvalidSetting)
		}
		apply = func(cur *schema.Settings) { cur.DownloadPath = value }
	default:
		flag, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", normalized, schema.ErrInvalidSetting)
		}
		apply = func(cur *schema.Settings) {
			switch normalized {
			case schema.SettingDarkMode:
				cur.DarkMode = flag
			case schema.SettingEnableNotifications:
				cur.EnableNotifications = flag
			case schema.SettingBookmarksBar:
				cur.BookmarksBarVisible = flag
			}
		}
	}
	s.Update(apply)
	s.log.Info("settings updated", "key", normalized)
	return nil
}

// Update mutates the settings and persists them.
func (s *Store) Update(fn func(*schema.Settings)) {
	s.mu.Lock()
	prev := s.current
	next := prev
	fn(&next)
	s.current = next
	appliers := append([]ThemeApplier(nil), s.appliers...)
	s.mu.Unlock()
	s.save(next)
	if prev.DarkMode != next.DarkMode {
		theme := schema.ThemeFor(next.DarkMode)
		for _, applier := range appliers {
			applier.ApplyTheme(theme)
		}
	}
}

// Reload re-reads the settings document after an external change.
func (s *Store) Reload() {
	next := s.read()
	s.mu.Lock()
	prev := s.current
	s.current = next
	appliers := append([]ThemeApplier(nil), s.appliers...)
	s.mu.Unlock()
	if prev.DarkMode != next.DarkMode {
		theme := schema.ThemeFor(next.DarkMode)
		for _, applier := range appliers {
			applier.ApplyTheme(theme)
		}
	}
	s.log.Debug("settings reloaded")
}

func (s *Store) read() schema.Settings {
	current := s.defaults
	if _, err := s.store.Get(Key, &current); err != nil {
		s.log.Warn("settings load failed", "err", err)
		current = s.defaults
	}
	if strings.TrimSpace(current.Homepage) == "" {
		current.Homepage = s.defaults.Homepage
	}
	if strings.TrimSpace(current.SearchEngine) == "" {
		current.SearchEngine = s.defaults.SearchEngine
	}
	return current
}

func (s *Store) save(current schema.Settings) {
	if err := s.store.Set(Key, current); err != nil {
		s.log.Warn("settings persist failed", "err", err)
	}
}

func validateHomepage(value string) error {
	if value == schema.BlankURL || strings.HasPrefix(value, schema.InternalScheme) {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s: %w", schema.SettingHomepage, schema.ErrInvalidSetting)
	}
	return nil
}

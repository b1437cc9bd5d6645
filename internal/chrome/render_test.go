package chrome

import (
	"strings"
	"testing"

	"pkt.systems/blinx/schema"
)

func stripTabs(titles ...string) []schema.TabSnapshot {
	tabs := make([]schema.TabSnapshot, 0, len(titles))
	for i, title := range titles {
		tabs = append(tabs, schema.TabSnapshot{ID: schema.TabID("tab" + string(rune('1'+i))), Title: title})
	}
	return tabs
}

func TestRenderTabBarFullWidth(t *testing.T) {
	tabs := stripTabs("alpha", "beta")
	st := stylesFor(schema.ThemeDark, true)
	line, _ := renderTabBar(tabs, "tab2", 40, st, 0)
	if got := visibleWidth(line); got != 40 {
		t.Fatalf("expected tab bar width 40, got %d", got)
	}
	if !strings.Contains(line, ansiBgRGB(paletteFor(schema.ThemeDark).TabActiveBG)) {
		t.Fatalf("expected active tab background color sequence")
	}
	if !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected tab bar to reset styles")
	}
}

func TestRenderTabBarPlainMarksActive(t *testing.T) {
	tabs := stripTabs("alpha", "beta")
	line, _ := renderTabBar(tabs, "tab2", 30, styles{}, 0)
	if strings.Contains(line, "\x1b") {
		t.Fatalf("expected no escape sequences in plain mode: %q", line)
	}
	if !strings.Contains(line, "[2 beta]") || !strings.Contains(line, " 1 alpha ") {
		t.Fatalf("unexpected plain tab bar %q", line)
	}
}

func TestRenderTabBarUntitledAndLoading(t *testing.T) {
	tabs := []schema.TabSnapshot{{ID: "a", Loading: true}}
	line, _ := renderTabBar(tabs, "a", 40, styles{}, 0)
	if !strings.Contains(line, "[1 "+schema.DefaultTabTitle+"~]") {
		t.Fatalf("expected placeholder title with loading marker, got %q", line)
	}
}

func TestRenderTabBarIndicators(t *testing.T) {
	st := stylesFor(schema.ThemeLight, true)
	tabs := stripTabs("one", "two", "three", "four", "five")
	line, _ := renderTabBar(tabs, "tab3", 20, st, 0)
	if !strings.Contains(line, "<") {
		t.Fatalf("expected left indicator for hidden tabs")
	}
	if !strings.Contains(line, ">") {
		t.Fatalf("expected right indicator for hidden tabs")
	}

	line, _ = renderTabBar(tabs, "tab1", 20, st, 0)
	if strings.Contains(line, "<") {
		t.Fatalf("did not expect left indicator when at first tab")
	}
	if !strings.Contains(line, ">") {
		t.Fatalf("expected right indicator when more tabs exist")
	}

	line, _ = renderTabBar(tabs, "tab5", 20, st, 0)
	if !strings.Contains(line, "<") {
		t.Fatalf("expected left indicator when more tabs exist")
	}
	if strings.Contains(line, ">") {
		t.Fatalf("did not expect right indicator when at last tab")
	}
}

func TestRenderTabBarWindowShift(t *testing.T) {
	st := stylesFor(schema.ThemeLight, true)
	tabs := stripTabs("one", "two", "three", "four", "five")
	steps := []struct {
		active schema.TabID
		want   int
	}{
		{"tab1", 0},
		{"tab2", 0},
		{"tab3", 1},
		{"tab4", 2},
		{"tab5", 3},
		{"tab2", 1},
	}
	start := 0
	for _, step := range steps {
		_, start = renderTabBar(tabs, step.active, 20, st, start)
		if start != step.want {
			t.Fatalf("active %s: expected window start %d, got %d", step.active, step.want, start)
		}
	}
}

func TestRenderToolbar(t *testing.T) {
	line := renderToolbar(schema.ChromeState{
		URLBar:      "https://example.com/",
		BackEnabled: true,
		Loading:     schema.AffordanceStop,
		Bookmarked:  false,
	}, 80, styles{})
	if line != "< - [stop] https://example.com/ ☆" {
		t.Fatalf("unexpected toolbar %q", line)
	}
	narrow := renderToolbar(schema.ChromeState{URLBar: strings.Repeat("x", 100), Loading: schema.AffordanceReload}, 30, styles{})
	if got := visibleWidth(narrow); got != 30 {
		t.Fatalf("expected toolbar clipped to 30 columns, got %d (%q)", got, narrow)
	}
}

func TestRenderBookmarkBar(t *testing.T) {
	bookmarks := []schema.Bookmark{
		{ID: "a", Title: "Docs", Folder: schema.RootFolder},
		{ID: "b", Title: "Filed", Folder: "work"},
		{ID: "c", Title: "News"},
	}
	if got := renderBookmarkBar(bookmarks, 80, styles{}); got != "★ 1 Docs | 3 News" {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := renderBookmarkBar(bookmarks[1:2], 80, styles{}); got != "" {
		t.Fatalf("expected empty bar for folder-only bookmarks, got %q", got)
	}
	narrow := renderBookmarkBar(bookmarks, 10, styles{})
	if visibleWidth(narrow) != 10 || !strings.HasSuffix(narrow, "~") {
		t.Fatalf("expected clipped bar, got %q", narrow)
	}
}

func TestRenderDownloadStates(t *testing.T) {
	st := styles{}
	if got := renderDownload(schema.Download{Filename: "a.zip", Status: schema.DownloadInProgress, Progress: 42.4}, st); got != "download a.zip 42%" {
		t.Fatalf("unexpected progress line %q", got)
	}
	if got := renderDownload(schema.Download{Filename: "a.zip", Status: schema.DownloadFailed, Error: "canceled"}, st); got != "download a.zip failed: canceled" {
		t.Fatalf("unexpected failure line %q", got)
	}
}

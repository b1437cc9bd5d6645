package chrome

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"pkt.systems/blinx/schema"
)

const tabTitleWidth = 12

func tabLabel(index int, tab schema.TabSnapshot, active bool, st styles) string {
	title := tab.Title
	if title == "" {
		title = schema.DefaultTabTitle
	}
	title = truncateName(title, tabTitleWidth)
	if tab.Loading {
		title += "~"
	}
	label := strconv.Itoa(index+1) + " " + title
	if active && !st.color {
		return "[" + label + "]"
	}
	return " " + label + " "
}

// renderTabBar draws the tab strip into width columns. When the tabs do not
// fit, a window of tabs is shown that keeps the active tab visible, starting
// from windowStart where possible. It returns the line and the new window
// start.
func renderTabBar(tabs []schema.TabSnapshot, active schema.TabID, width int, st styles, windowStart int) (string, int) {
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	b.WriteString(st.bar)
	if len(tabs) == 0 {
		b.WriteString(st.inactive)
		b.WriteString(" no tabs ")
		b.WriteString(st.bar)
		return finishBar(b.String(), width, st), 0
	}

	labels := make([]string, 0, len(tabs))
	widths := make([]int, 0, len(tabs))
	activeIndex := 0
	totalWidth := 0
	for i, tab := range tabs {
		label := tabLabel(i, tab, tab.ID == active, st)
		labels = append(labels, label)
		w := utf8.RuneCountInString(label)
		widths = append(widths, w)
		totalWidth += w
		if tab.ID == active {
			activeIndex = i
		}
	}

	window := tabWindow{start: 0, end: len(tabs)}
	if totalWidth > width {
		window = tabWindowFrom(widths, windowStart, width)
		if activeIndex < window.start {
			window = tabWindowFrom(widths, activeIndex, width)
		} else if activeIndex >= window.end {
			window = tabWindowEndingAt(widths, activeIndex, width)
		}
	}

	if window.leftHidden {
		b.WriteString(st.indicator)
		b.WriteString("<")
		b.WriteString(st.bar)
	}
	for i := window.start; i < window.end; i++ {
		if tabs[i].ID == active {
			b.WriteString(st.active)
		} else {
			b.WriteString(st.inactive)
		}
		b.WriteString(labels[i])
		b.WriteString(st.bar)
	}
	line := b.String()
	if window.rightHidden {
		if visibleWidth(line) > width-1 {
			line = trimANSIToWidth(line, width-1)
		}
		if pad := (width - 1) - visibleWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		line += st.indicator + ">" + st.bar
	}
	return finishBar(line, width, st), window.start
}

// tabMidpoints returns the bar column at the middle of each tab label, in
// display order, for the window starting at windowStart. Tabs scrolled off
// the left edge get negative columns.
func tabMidpoints(tabs []schema.TabSnapshot, active schema.TabID, st styles, windowStart int) []float64 {
	midpoints := make([]float64, len(tabs))
	widths := make([]int, len(tabs))
	for i, tab := range tabs {
		widths[i] = utf8.RuneCountInString(tabLabel(i, tab, tab.ID == active, st))
	}
	windowStart = clamp(windowStart, 0, max(len(tabs)-1, 0))
	offset := 0
	for i := 0; i < windowStart; i++ {
		offset -= widths[i]
	}
	if windowStart > 0 {
		offset++
	}
	for i, w := range widths {
		midpoints[i] = float64(offset) + float64(w)/2
		offset += w
	}
	return midpoints
}

func finishBar(line string, width int, st styles) string {
	if visible := visibleWidth(line); visible < width {
		line += strings.Repeat(" ", width-visible)
	}
	return trimANSIToWidth(line, width) + st.reset
}

type tabWindow struct {
	start       int
	end         int
	leftHidden  bool
	rightHidden bool
}

// tabWindowFrom fits as many tabs as possible starting at start.
func tabWindowFrom(widths []int, start int, width int) tabWindow {
	n := len(widths)
	if n == 0 {
		return tabWindow{}
	}
	start = clamp(start, 0, n-1)
	leftHidden := start > 0
	rightHidden := false
	end := start + 1
	// Indicators take a column each, which can change what fits.
	for i := 0; i < 3; i++ {
		end = fitForward(widths, start, available(width, leftHidden, rightHidden))
		rightHidden = end < n
	}
	return tabWindow{start: start, end: end, leftHidden: leftHidden, rightHidden: rightHidden}
}

// tabWindowEndingAt fits as many tabs as possible ending with last.
func tabWindowEndingAt(widths []int, last int, width int) tabWindow {
	n := len(widths)
	if n == 0 {
		return tabWindow{}
	}
	end := clamp(last, 0, n-1) + 1
	rightHidden := end < n
	leftHidden := false
	start := end - 1
	for i := 0; i < 3; i++ {
		start = fitBackward(widths, end, available(width, leftHidden, rightHidden))
		leftHidden = start > 0
	}
	return tabWindow{start: start, end: end, leftHidden: leftHidden, rightHidden: rightHidden}
}

func available(width int, leftHidden, rightHidden bool) int {
	if leftHidden {
		width--
	}
	if rightHidden {
		width--
	}
	if width < 1 {
		width = 1
	}
	return width
}

func fitForward(widths []int, start int, avail int) int {
	n := len(widths)
	if start >= n {
		return n
	}
	sum := 0
	end := start
	for i := start; i < n; i++ {
		if sum+widths[i] > avail {
			break
		}
		sum += widths[i]
		end = i + 1
	}
	if end == start {
		end = start + 1
	}
	return end
}

func fitBackward(widths []int, end int, avail int) int {
	if end < 1 {
		return 0
	}
	sum := 0
	start := end
	for i := end - 1; i >= 0; i-- {
		if sum+widths[i] > avail {
			break
		}
		sum += widths[i]
		start = i
	}
	if start == end {
		start = end - 1
	}
	return start
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// renderToolbar draws the navigation buttons, the URL bar and the bookmark
// star for the active tab.
func renderToolbar(state schema.ChromeState, width int, st styles) string {
	button := func(label string, enabled bool) string {
		if enabled {
			return label
		}
		if st.color {
			return st.dim + label + st.reset
		}
		return "-"
	}
	load := "reload"
	if state.Loading == schema.AffordanceStop {
		load = "stop"
	}
	star := "☆"
	if state.Bookmarked {
		star = st.accent + "★" + st.reset
	}
	prefix := fmt.Sprintf("%s %s [%s] ", button("<", state.BackEnabled), button(">", state.ForwardEnabled), load)
	suffix := " " + star
	url := state.URLBar
	if width > 0 {
		room := width - visibleWidth(prefix) - visibleWidth(suffix)
		if room < 1 {
			room = 1
		}
		url = truncateName(url, room)
	}
	return prefix + url + suffix
}

// renderBookmarkBar lists the bookmarks that sit directly on the bar,
// numbered like the bookmarks command, clipped to width.
func renderBookmarkBar(bookmarks []schema.Bookmark, width int, st styles) string {
	var parts []string
	for i, bm := range bookmarks {
		if bm.Folder != "" && bm.Folder != schema.RootFolder {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", i+1, truncateName(bm.Title, 24)))
	}
	if len(parts) == 0 {
		return ""
	}
	line := st.meta + "★ " + st.reset + strings.Join(parts, " | ")
	if width > 0 && visibleWidth(line) > width {
		line = trimANSIToWidth(line, width-1) + "~"
	}
	return line
}

func renderNotice(n schema.NoticeEvent, st styles) string {
	if n.Level == schema.NoticeError {
		return st.errorText + "! " + n.Message + st.reset
	}
	return st.meta + "- " + n.Message + st.reset
}

func renderDownload(d schema.Download, st styles) string {
	name := d.Filename
	if name == "" {
		name = d.URL
	}
	switch d.Status {
	case schema.DownloadCompleted:
		return st.meta + "download " + name + " completed" + st.reset
	case schema.DownloadFailed:
		msg := "download " + name + " failed"
		if d.Error != "" {
			msg += ": " + d.Error
		}
		return st.errorText + msg + st.reset
	default:
		return st.meta + fmt.Sprintf("download %s %.0f%%", name, d.Progress) + st.reset
	}
}

func truncateName(name string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	if max == 1 {
		return "~"
	}
	return string(append(runes[:max-1], '~'))
}

func skipEscape(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		for i++; i < len(text); i++ {
			if text[i] >= 0x40 && text[i] <= 0x7e {
				return i + 1
			}
		}
		return i
	default:
		return i + 1
	}
}

func visibleWidth(text string) int {
	width := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = skipEscape(text, i+1)
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		width++
	}
	return width
}

func trimANSIToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	visible := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			start := i
			i = skipEscape(text, i+1)
			b.WriteString(text[start:i])
			continue
		}
		if visible >= width {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		b.WriteRune(r)
		i += size
		visible++
	}
	return b.String()
}

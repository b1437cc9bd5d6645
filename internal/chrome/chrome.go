package chrome

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"golang.org/x/term"

	"pkt.systems/blinx/internal/eventbus"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

const prompt = "blinx> "

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

// Controller is the shell surface the chrome drives. Tab indexes are
// zero-based positions in the tab strip; -1 selects the active tab.
type Controller interface {
	OpenTab(ctx context.Context, url string) error
	Navigate(ctx context.Context, input string) error
	CloseTab(ctx context.Context, index int) error
	ActivateTab(ctx context.Context, index int) error
	MoveTab(ctx context.Context, from, to int) error
	Tabs(ctx context.Context) ([]schema.TabSnapshot, error)
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
	Stop(ctx context.Context) error

	DropTab(ctx context.Context, index int, pointerX float64, midpoints []float64) error

	AddBookmark(ctx context.Context, title string, folder schema.FolderID) (schema.Bookmark, error)
	ToggleBookmark(ctx context.Context) (bool, error)
	Bookmarks() []schema.Bookmark
	OpenBookmark(ctx context.Context, id schema.BookmarkID, newTab bool) error
	RemoveBookmark(id schema.BookmarkID) error
	Folders() []schema.BookmarkFolder
	AddFolder(title string) (schema.BookmarkFolder, error)
	RemoveFolder(id schema.FolderID) error

	Downloads() (active, history []schema.Download)
	Settings() schema.Settings
	SetSetting(key, value string) error

	Minimize(ctx context.Context) error
	MaximizeOrRestore(ctx context.Context) error
	Quit()
}

// Options configures a Chrome.
type Options struct {
	In     io.Reader
	Out    io.Writer
	Events <-chan eventbus.Event
	Theme  schema.ThemeName
	// Terminal marks In and Out as a terminal that is already in raw mode,
	// such as an SSH session with a PTY.
	Terminal bool
	Width    int
	Logger   pslog.Logger
}

// Chrome is the terminal front end: it reads commands, turns them into
// controller intents and renders shell events.
type Chrome struct {
	ctl    Controller
	in     io.Reader
	events <-chan eventbus.Event
	log    pslog.Logger

	mu          sync.Mutex
	out         io.Writer
	st          styles
	theme       schema.ThemeName
	width       int
	strip       tabStrip
	windowStart int
	toolbar     schema.ChromeState
	listing     []schema.Bookmark
	folders     []schema.BookmarkFolder
	dialog      *bookmarkDialog
	rawTerm     bool
	term        *term.Terminal
}

// New constructs a Chrome. Output is plain text until Run detects a terminal.
func New(ctl Controller, opts Options) *Chrome {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	theme := opts.Theme
	if theme == "" {
		theme = schema.DefaultTheme
	}
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	return &Chrome{
		ctl:     ctl,
		in:      in,
		out:     out,
		events:  opts.Events,
		log:     logger.With("component", "chrome"),
		theme:   theme,
		width:   width,
		rawTerm: opts.Terminal,
	}
}

// SetSize updates the terminal size used for layout.
func (c *Chrome) SetSize(width, height int) {
	if width <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	if c.term != nil && height > 0 {
		if err := c.term.SetSize(width, height); err != nil {
			c.log.Debug("chrome resize failed", "err", err)
		}
	}
}

type lineReader interface {
	ReadLine() (string, error)
}

type plainReader struct {
	scanner *bufio.Scanner
}

func (r plainReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Run reads commands until quit, end of input or ctx cancellation.
func (c *Chrome) Run(ctx context.Context) error {
	reader, restore, err := c.openInput()
	if err != nil {
		return err
	}
	defer restore()
	c.seedTabs(ctx)

	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()
	go c.render(renderCtx)

	type result struct {
		line string
		err  error
	}
	lines := make(chan result)
	go func() {
		for {
			line, err := reader.ReadLine()
			select {
			case lines <- result{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	c.println(c.st.meta + "type help for commands" + c.st.reset)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-lines:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					c.ctl.Quit()
					return nil
				}
				return res.err
			}
			quit, err := c.Execute(ctx, res.line)
			if err != nil {
				c.println(renderNotice(schema.NoticeEvent{Level: schema.NoticeError, Message: err.Error()}, c.st))
			}
			if quit {
				c.ctl.Quit()
				return nil
			}
		}
	}
}

// seedTabs loads the current strip so a chrome attached to a running shell
// starts with every open tab.
func (c *Chrome) seedTabs(ctx context.Context) {
	tabs, err := c.ctl.Tabs(ctx)
	if err != nil {
		c.log.Debug("chrome tab seed failed", "err", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strip.tabs = tabs
	for _, tab := range tabs {
		if tab.Active {
			c.strip.active = tab.ID
		}
	}
	if len(tabs) > 0 {
		c.writeLocked(c.tabBarLocked())
	}
}

// openInput switches to a line-editing terminal when both ends are a TTY.
func (c *Chrome) openInput() (lineReader, func(), error) {
	if c.rawTerm {
		terminal := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{c.in, c.out}, prompt)
		c.useTerminal(terminal)
		return terminal, func() {}, nil
	}
	inFile, inOK := c.in.(*os.File)
	outFile, outOK := c.out.(*os.File)
	if !inOK || !outOK || !term.IsTerminal(int(inFile.Fd())) || !term.IsTerminal(int(outFile.Fd())) {
		return plainReader{scanner: bufio.NewScanner(c.in)}, func() {}, nil
	}
	fd := int(inFile.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("enable raw mode: %w", err)
	}
	terminal := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{inFile, outFile}, prompt)
	c.useTerminal(terminal)
	if width, height, err := term.GetSize(int(outFile.Fd())); err == nil {
		c.SetSize(width, height)
	}
	return terminal, func() { _ = term.Restore(fd, state) }, nil
}

func (c *Chrome) useTerminal(terminal *term.Terminal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = terminal
	c.out = terminal
	c.st = stylesFor(c.theme, true)
}

func (c *Chrome) render(ctx context.Context) {
	if c.events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent renders one shell event.
func (c *Chrome) HandleEvent(ev eventbus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case eventbus.EventTab:
		if c.strip.apply(ev.Tab) {
			c.writeLocked(c.tabBarLocked())
		}
	case eventbus.EventChrome:
		state := ev.Chrome.State
		if state.Theme != "" && state.Theme != c.theme {
			c.theme = state.Theme
			if c.st.color {
				c.st = stylesFor(c.theme, true)
			}
		}
		if state == c.toolbar {
			return
		}
		c.toolbar = state
		c.writeLocked(renderToolbar(state, c.width, c.st))
		if state.BookmarksBarOn {
			if bar := renderBookmarkBar(c.ctl.Bookmarks(), c.width, c.st); bar != "" {
				c.writeLocked(bar)
			}
		}
	case eventbus.EventDownload:
		if !c.ctl.Settings().EnableNotifications {
			return
		}
		c.writeLocked(renderDownload(ev.Download.Download, c.st))
	case eventbus.EventNotice:
		c.writeLocked(renderNotice(ev.Notice, c.st))
	}
}

func (c *Chrome) tabBarLocked() string {
	line, start := renderTabBar(c.strip.tabs, c.strip.active, c.width, c.st, c.windowStart)
	c.windowStart = start
	return line
}

func (c *Chrome) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(line)
}

func (c *Chrome) writeLocked(line string) {
	if _, err := io.WriteString(c.out, line+"\n"); err != nil {
		c.log.Debug("chrome write failed", "err", err)
	}
}

// Execute runs one command line. It reports whether the shell should quit.
func (c *Chrome) Execute(ctx context.Context, line string) (bool, error) {
	c.mu.Lock()
	dialog := c.dialog
	c.mu.Unlock()
	if dialog != nil {
		return false, c.answerDialog(ctx, dialog, line)
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		c.println(helpText)
		return false, nil
	case "open", "new":
		return false, c.ctl.OpenTab(ctx, strings.Join(args, " "))
	case "go":
		if len(args) == 0 {
			return false, usage("go <url or search>")
		}
		return false, c.ctl.Navigate(ctx, strings.Join(args, " "))
	case "close":
		index := -1
		if len(args) > 0 {
			n, err := parseIndex(args[0])
			if err != nil {
				return false, err
			}
			index = n
		}
		return false, c.ctl.CloseTab(ctx, index)
	case "tab":
		if len(args) != 1 {
			return false, usage("tab <n>")
		}
		n, err := parseIndex(args[0])
		if err != nil {
			return false, err
		}
		return false, c.ctl.ActivateTab(ctx, n)
	case "move":
		if len(args) != 2 {
			return false, usage("move <n> <position>")
		}
		from, err := parseIndex(args[0])
		if err != nil {
			return false, err
		}
		to, err := parseIndex(args[1])
		if err != nil {
			return false, err
		}
		return false, c.ctl.MoveTab(ctx, from, to)
	case "drag":
		if len(args) != 2 {
			return false, usage("drag <n> <column>")
		}
		n, err := parseIndex(args[0])
		if err != nil {
			return false, err
		}
		column, err := parseIndex(args[1])
		if err != nil {
			return false, err
		}
		return false, c.dragTab(ctx, n, column)
	case "tabs":
		return false, c.listTabs(ctx)
	case "back":
		return false, c.ctl.Back(ctx)
	case "forward":
		return false, c.ctl.Forward(ctx)
	case "reload":
		return false, c.ctl.Reload(ctx)
	case "stop":
		return false, c.ctl.Stop(ctx)
	case "bookmark":
		return false, c.bookmarkActive(ctx)
	case "bookmarks":
		c.listBookmarks()
		return false, nil
	case "bm":
		return false, c.bookmarkCommand(ctx, args)
	case "folders":
		c.listFolders()
		return false, nil
	case "folder":
		return false, c.folderCommand(args)
	case "downloads":
		c.listDownloads()
		return false, nil
	case "settings":
		c.listSettings()
		return false, nil
	case "set":
		if len(args) < 2 {
			return false, usage("set <key> <value>")
		}
		if err := c.ctl.SetSetting(args[0], strings.Join(args[1:], " ")); err != nil {
			return false, err
		}
		c.println("setting " + args[0] + " updated")
		return false, nil
	case "qr":
		return false, c.printQR(ctx)
	case "min":
		return false, c.ctl.Minimize(ctx)
	case "max":
		return false, c.ctl.MaximizeOrRestore(ctx)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

// dragTab drops the tab at index onto the tab bar at column, counted from
// the left edge of the bar.
func (c *Chrome) dragTab(ctx context.Context, index, column int) error {
	tabs, err := c.ctl.Tabs(ctx)
	if err != nil {
		return err
	}
	if index >= len(tabs) {
		return fmt.Errorf("no tab %d", index+1)
	}
	var active schema.TabID
	for _, tab := range tabs {
		if tab.Active {
			active = tab.ID
		}
	}
	c.mu.Lock()
	midpoints := tabMidpoints(tabs, active, c.st, c.windowStart)
	c.mu.Unlock()
	return c.ctl.DropTab(ctx, index, float64(column), midpoints)
}

type dialogStep int

const (
	stepName dialogStep = iota
	stepFolder
)

// bookmarkDialog collects the name and folder for a new bookmark over the
// next command lines.
type bookmarkDialog struct {
	step    dialogStep
	title   string
	folders []schema.BookmarkFolder
}

// bookmarkActive removes the active page's bookmark, or opens the add dialog
// when the page is not bookmarked yet.
func (c *Chrome) bookmarkActive(ctx context.Context) error {
	tabs, err := c.ctl.Tabs(ctx)
	if err != nil {
		return err
	}
	var active *schema.TabSnapshot
	for i := range tabs {
		if tabs[i].Active {
			active = &tabs[i]
			break
		}
	}
	if active == nil {
		return schema.ErrNoActiveTab
	}
	for _, bm := range c.ctl.Bookmarks() {
		if bm.URL != active.URL {
			continue
		}
		if _, err := c.ctl.ToggleBookmark(ctx); err != nil {
			return err
		}
		c.println("bookmark removed")
		return nil
	}
	c.mu.Lock()
	c.dialog = &bookmarkDialog{step: stepName, title: active.Title}
	c.mu.Unlock()
	c.println(fmt.Sprintf("name [%s] (- clears):", active.Title))
	return nil
}

func (c *Chrome) endDialog() {
	c.mu.Lock()
	c.dialog = nil
	c.mu.Unlock()
}

func (c *Chrome) answerDialog(ctx context.Context, d *bookmarkDialog, line string) error {
	answer := strings.TrimSpace(line)
	switch d.step {
	case stepName:
		switch answer {
		case "":
		case "-":
			d.title = ""
		default:
			d.title = answer
		}
		if strings.TrimSpace(d.title) == "" {
			c.endDialog()
			c.println("canceled")
			return nil
		}
		d.folders = c.ctl.Folders()
		if len(d.folders) == 0 {
			c.endDialog()
			return c.addBookmark(ctx, d.title, schema.RootFolder)
		}
		d.step = stepFolder
		var b strings.Builder
		b.WriteString("0 bookmarks bar\n")
		for i, folder := range d.folders {
			fmt.Fprintf(&b, "%d %s\n", i+1, folder.Title)
		}
		b.WriteString("folder [0]:")
		c.println(b.String())
		return nil
	default:
		c.endDialog()
		folder, err := pickFolder(d.folders, answer)
		if err != nil {
			return err
		}
		return c.addBookmark(ctx, d.title, folder)
	}
}

func (c *Chrome) addBookmark(ctx context.Context, title string, folder schema.FolderID) error {
	bm, err := c.ctl.AddBookmark(ctx, title, folder)
	if errors.Is(err, schema.ErrCanceled) {
		c.println("canceled")
		return nil
	}
	if err != nil {
		return err
	}
	c.println("bookmark added: " + bm.Title)
	return nil
}

// pickFolder resolves a folder answer given as a listed position, a title or
// blank for the bookmarks bar.
func pickFolder(folders []schema.BookmarkFolder, answer string) (schema.FolderID, error) {
	if answer == "" || answer == "0" {
		return schema.RootFolder, nil
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(folders) {
			return "", fmt.Errorf("no folder %d", n)
		}
		return folders[n-1].ID, nil
	}
	for _, folder := range folders {
		if strings.EqualFold(folder.Title, answer) {
			return folder.ID, nil
		}
	}
	return "", fmt.Errorf("%q: %w", answer, schema.ErrFolderNotFound)
}

func (c *Chrome) bookmarkCommand(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("bm open <n> [new] | bm rm <n>")
	}
	bookmark, err := c.listedBookmark(args[1])
	if err != nil {
		return err
	}
	switch strings.ToLower(args[0]) {
	case "open":
		newTab := len(args) > 2 && strings.EqualFold(args[2], "new")
		return c.ctl.OpenBookmark(ctx, bookmark.ID, newTab)
	case "rm", "remove":
		if err := c.ctl.RemoveBookmark(bookmark.ID); err != nil {
			return err
		}
		c.println("bookmark removed: " + bookmark.Title)
		return nil
	default:
		return usage("bm open <n> [new] | bm rm <n>")
	}
}

func (c *Chrome) folderCommand(args []string) error {
	if len(args) < 2 {
		return usage("folder add <title> | folder rm <n>")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		folder, err := c.ctl.AddFolder(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		c.println("folder added: " + folder.Title)
		return nil
	case "rm", "remove":
		n, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		c.mu.Lock()
		folders := c.folders
		c.mu.Unlock()
		if n >= len(folders) {
			return fmt.Errorf("no folder %d; run folders first", n+1)
		}
		if err := c.ctl.RemoveFolder(folders[n].ID); err != nil {
			return err
		}
		c.println("folder removed: " + folders[n].Title)
		return nil
	default:
		return usage("folder add <title> | folder rm <n>")
	}
}

func (c *Chrome) listedBookmark(raw string) (schema.Bookmark, error) {
	n, err := parseIndex(raw)
	if err != nil {
		return schema.Bookmark{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n >= len(c.listing) {
		return schema.Bookmark{}, fmt.Errorf("no bookmark %d; run bookmarks first", n+1)
	}
	return c.listing[n], nil
}

func (c *Chrome) listTabs(ctx context.Context) error {
	tabs, err := c.ctl.Tabs(ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	for i, tab := range tabs {
		marker := " "
		if tab.Active {
			marker = "*"
		}
		title := tab.Title
		if tab.Loading {
			title += " (loading)"
		}
		fmt.Fprintf(&b, "%s%d %s  %s\n", marker, i+1, title, tab.URL)
	}
	c.println(strings.TrimRight(b.String(), "\n"))
	return nil
}

func (c *Chrome) listBookmarks() {
	bookmarks := c.ctl.Bookmarks()
	c.mu.Lock()
	c.listing = bookmarks
	c.mu.Unlock()
	if len(bookmarks) == 0 {
		c.println("no bookmarks")
		return
	}
	var b strings.Builder
	for i, bm := range bookmarks {
		folder := ""
		if bm.Folder != "" && bm.Folder != schema.RootFolder {
			folder = " [" + c.folderTitle(bm.Folder) + "]"
		}
		fmt.Fprintf(&b, "%d %s%s  %s\n", i+1, bm.Title, folder, bm.URL)
	}
	c.println(strings.TrimRight(b.String(), "\n"))
}

func (c *Chrome) folderTitle(id schema.FolderID) string {
	for _, folder := range c.ctl.Folders() {
		if folder.ID == id {
			return folder.Title
		}
	}
	return string(id)
}

func (c *Chrome) listFolders() {
	folders := c.ctl.Folders()
	c.mu.Lock()
	c.folders = folders
	c.mu.Unlock()
	if len(folders) == 0 {
		c.println("no folders")
		return
	}
	var b strings.Builder
	for i, folder := range folders {
		fmt.Fprintf(&b, "%d %s\n", i+1, folder.Title)
	}
	c.println(strings.TrimRight(b.String(), "\n"))
}

func (c *Chrome) listDownloads() {
	active, history := c.ctl.Downloads()
	if len(active) == 0 && len(history) == 0 {
		c.println("no downloads")
		return
	}
	var b strings.Builder
	if len(active) > 0 {
		b.WriteString("active:\n")
		for _, d := range active {
			fmt.Fprintf(&b, "  %s %.0f%%  %s\n", d.Filename, d.Progress, d.URL)
		}
	}
	if len(history) > 0 {
		b.WriteString("history:\n")
		for _, d := range history {
			line := fmt.Sprintf("  %s %s  %s", d.Filename, d.Status, d.Path)
			if d.Error != "" {
				line += "  (" + d.Error + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	c.println(strings.TrimRight(b.String(), "\n"))
}

func (c *Chrome) listSettings() {
	s := c.ctl.Settings()
	c.println(strings.Join([]string{
		"homepage              " + s.Homepage,
		"search_engine         " + s.SearchEngine,
		"dark_mode             " + strconv.FormatBool(s.DarkMode),
		"enable_notifications  " + strconv.FormatBool(s.EnableNotifications),
		"download_path         " + s.DownloadPath,
		"bookmarks_bar_visible " + strconv.FormatBool(s.BookmarksBarVisible),
	}, "\n"))
}

// printQR draws the active tab's url as a QR code so it can be opened on
// another device.
func (c *Chrome) printQR(ctx context.Context) error {
	tabs, err := c.ctl.Tabs(ctx)
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		if !tab.Active {
			continue
		}
		if tab.URL == "" || tab.URL == schema.BlankURL {
			return errors.New("active tab has no page to share")
		}
		var b strings.Builder
		qrterminal.GenerateHalfBlock(tab.URL, qrterminal.L, &b)
		c.println(strings.TrimRight(b.String(), "\n") + "\n" + tab.URL)
		return nil
	}
	return schema.ErrNoActiveTab
}

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: expected a position starting at 1, got %q", ErrUsage, raw)
	}
	return n - 1, nil
}

func usage(text string) error {
	return fmt.Errorf("%w: %s", ErrUsage, text)
}

const helpText = `tabs:      open [url] | go <url or search> | close [n] | tab <n> | move <n> <pos> | drag <n> <col> | tabs
page:      back | forward | reload | stop
bookmarks: bookmark | bookmarks | bm open <n> [new] | bm rm <n>
folders:   folders | folder add <title> | folder rm <n>
other:     downloads | settings | set <key> <value> | qr | min | max | quit`

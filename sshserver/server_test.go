package sshserver

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/ssh"

	"pkt.systems/blinx/internal/eventbus"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

type fakeShell struct {
	mu     sync.Mutex
	calls  []string
	quit   bool
	events chan eventbus.Event
}

func (f *fakeShell) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeShell) snapshot() ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), f.quit
}

func (f *fakeShell) OpenTab(context.Context, string) error  { return f.record("open") }
func (f *fakeShell) Navigate(context.Context, string) error { return f.record("navigate") }
func (f *fakeShell) CloseTab(context.Context, int) error    { return f.record("close") }
func (f *fakeShell) ActivateTab(context.Context, int) error { return f.record("activate") }
func (f *fakeShell) MoveTab(context.Context, int, int) error {
	return f.record("move")
}

func (f *fakeShell) Tabs(context.Context) ([]schema.TabSnapshot, error) {
	return []schema.TabSnapshot{{ID: "t1", Title: "Home", URL: "https://example.com", Active: true}}, f.record("tabs")
}

func (f *fakeShell) Back(context.Context) error    { return f.record("back") }
func (f *fakeShell) Forward(context.Context) error { return f.record("forward") }
func (f *fakeShell) Reload(context.Context) error  { return f.record("reload") }
func (f *fakeShell) Stop(context.Context) error    { return f.record("stop") }

func (f *fakeShell) DropTab(context.Context, int, float64, []float64) error {
	return f.record("drop")
}

func (f *fakeShell) AddBookmark(_ context.Context, title string, _ schema.FolderID) (schema.Bookmark, error) {
	return schema.Bookmark{ID: "b1", Title: title}, f.record("bm-add")
}

func (f *fakeShell) ToggleBookmark(context.Context) (bool, error) { return true, f.record("toggle") }
func (f *fakeShell) Bookmarks() []schema.Bookmark                 { return nil }
func (f *fakeShell) OpenBookmark(context.Context, schema.BookmarkID, bool) error {
	return f.record("bm-open")
}
func (f *fakeShell) RemoveBookmark(schema.BookmarkID) error { return f.record("bm-rm") }
func (f *fakeShell) Folders() []schema.BookmarkFolder       { return nil }
func (f *fakeShell) AddFolder(title string) (schema.BookmarkFolder, error) {
	return schema.BookmarkFolder{Title: title}, f.record("mkdir")
}
func (f *fakeShell) RemoveFolder(schema.FolderID) error { return f.record("rmdir") }

func (f *fakeShell) Downloads() (active, history []schema.Download) { return nil, nil }
func (f *fakeShell) Settings() schema.Settings                      { return schema.Settings{} }
func (f *fakeShell) SetSetting(string, string) error                { return f.record("set") }

func (f *fakeShell) Minimize(context.Context) error          { return f.record("minimize") }
func (f *fakeShell) MaximizeOrRestore(context.Context) error { return f.record("maximize") }

func (f *fakeShell) Quit() {
	f.mu.Lock()
	f.quit = true
	f.mu.Unlock()
}

func (f *fakeShell) Subscribe(...eventbus.EventType) (<-chan eventbus.Event, func()) {
	return f.events, func() {}
}

func (f *fakeShell) Theme() schema.ThemeName { return schema.ThemeDark }

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func writeAuthorizedKeys(t *testing.T, dir string, signers ...ssh.Signer) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("# login keys\n\n")
	for _, signer := range signers {
		buf.Write(ssh.MarshalAuthorizedKey(signer.PublicKey()))
	}
	path := filepath.Join(dir, "authorized_keys")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write authorized keys: %v", err)
	}
	return path
}

func startTestServer(t *testing.T, cfg Config, shell Shell) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = filepath.Join(t.TempDir(), "host_key")
	}
	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		Config:   cfg,
		Shell:    shell,
		Listener: ln,
		logger:   pslog.NewWithOptions(os.Stderr, pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.ErrorLevel}),
	}
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ln.Addr().String()
}

func sshDial(addr string, methods ...ssh.AuthMethod) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "blinx",
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestEnsureHostKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_key")
	first, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("first host key: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat host key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("host key mode = %v", info.Mode().Perm())
	}
	second, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("second host key: %v", err)
	}
	if !bytes.Equal(first.PublicKey().Marshal(), second.PublicKey().Marshal()) {
		t.Fatalf("host key changed between loads")
	}
	if first.PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Fatalf("host key type = %s", first.PublicKey().Type())
	}
}

func TestEnsureHostKeyRequiresPath(t *testing.T) {
	if _, err := EnsureHostKey(" "); err == nil {
		t.Fatalf("expected error for blank path")
	}
}

func TestLoadAuthorizedKeys(t *testing.T) {
	dir := t.TempDir()
	allowed := newTestSigner(t)
	other := newTestSigner(t)
	path := writeAuthorizedKeys(t, dir, allowed)

	keys, err := LoadAuthorizedKeys(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys = %d, want 1", len(keys))
	}
	if !keyAuthorized(keys, allowed.PublicKey()) {
		t.Fatalf("expected allowed key to match")
	}
	if keyAuthorized(keys, other.PublicKey()) {
		t.Fatalf("unexpected match for other key")
	}
	if keyAuthorized(keys, nil) {
		t.Fatalf("unexpected match for nil key")
	}
}

func TestLoadAuthorizedKeysReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte("# c\nssh-ed25519 not-base64\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadAuthorizedKeys(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if want := path + ":2"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Fatalf("error %q does not name %s", err, want)
	}
}

func TestServerRequiresAuthorizedKeys(t *testing.T) {
	server := &Server{Config: Config{HostKeyPath: filepath.Join(t.TempDir(), "k")}, Shell: &fakeShell{}}
	if err := server.ListenAndServe(context.Background()); err == nil {
		t.Fatalf("expected error without authorized keys")
	}
}

func TestSSHRejectsUnknownKey(t *testing.T) {
	allowed := newTestSigner(t)
	addr := startTestServer(t, Config{AuthorizedKeys: writeAuthorizedKeys(t, t.TempDir(), allowed)}, &fakeShell{})
	if _, err := sshDial(addr, ssh.PublicKeys(newTestSigner(t))); err == nil {
		t.Fatalf("expected auth failure with unknown key")
	}
	client, err := sshDial(addr, ssh.PublicKeys(allowed))
	if err != nil {
		t.Fatalf("expected auth success: %v", err)
	}
	_ = client.Close()
}

func TestSSHRequiresVerificationCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "blinx", AccountName: "test"})
	if err != nil {
		t.Fatalf("totp key: %v", err)
	}
	signer := newTestSigner(t)
	addr := startTestServer(t, Config{
		AuthorizedKeys: writeAuthorizedKeys(t, t.TempDir(), signer),
		TOTPSecret:     key.Secret(),
	}, &fakeShell{})

	if _, err := sshDial(addr, ssh.PublicKeys(signer)); err == nil {
		t.Fatalf("expected auth failure without code")
	}
	if _, err := sshDial(addr, ssh.PublicKeys(signer), ssh.KeyboardInteractive(func(_, _ string, _ []string, _ []bool) ([]string, error) {
		return []string{"000000"}, nil
	})); err == nil {
		t.Fatalf("expected auth failure with wrong code")
	}

	var prompted bool
	if _, err := sshDial(addr, ssh.PublicKeys(newTestSigner(t)), ssh.KeyboardInteractive(func(_, _ string, _ []string, _ []bool) ([]string, error) {
		prompted = true
		return []string{"000000"}, nil
	})); err == nil {
		t.Fatalf("expected auth failure with unknown key")
	}
	if prompted {
		t.Fatalf("unexpected code prompt without a valid key")
	}

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	var prompts []string
	client, err := sshDial(addr, ssh.PublicKeys(signer), ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
		prompts = append(prompts, questions...)
		return []string{code}, nil
	}))
	if err != nil {
		t.Fatalf("expected auth success with key and code: %v", err)
	}
	_ = client.Close()
	if len(prompts) != 1 || prompts[0] != "Verification code: " {
		t.Fatalf("unexpected prompts: %#v", prompts)
	}
}

func TestSSHSessionDrivesChrome(t *testing.T) {
	signer := newTestSigner(t)
	shell := &fakeShell{events: make(chan eventbus.Event)}
	addr := startTestServer(t, Config{AuthorizedKeys: writeAuthorizedKeys(t, t.TempDir(), signer)}, shell)

	client, err := sshDial(addr, ssh.PublicKeys(signer))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	session, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer session.Close()
	if err := session.RequestPty("xterm", 40, 100, ssh.TerminalModes{}); err != nil {
		t.Fatalf("pty: %v", err)
	}
	var out bytes.Buffer
	session.Stdout = &out
	stdin, err := session.StdinPipe()
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if err := session.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if _, err := stdin.Write([]byte("reload\rquit\r")); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("session wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not end")
	}

	calls, quit := shell.snapshot()
	if quit {
		t.Fatalf("session quit must not quit the browser")
	}
	if len(calls) < 2 || calls[0] != "tabs" || calls[1] != "reload" {
		t.Fatalf("calls = %#v", calls)
	}
	if !bytes.Contains(out.Bytes(), []byte("Home")) {
		t.Fatalf("tab strip missing from output: %q", out.String())
	}
}

func TestSSHSessionRequiresPty(t *testing.T) {
	signer := newTestSigner(t)
	addr := startTestServer(t, Config{AuthorizedKeys: writeAuthorizedKeys(t, t.TempDir(), signer)}, &fakeShell{})
	client, err := sshDial(addr, ssh.PublicKeys(signer))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	session, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer session.Close()
	out, err := session.CombinedOutput("")
	if err == nil {
		t.Fatalf("expected non-zero exit without pty")
	}
	if !bytes.Contains(out, []byte("pty required")) {
		t.Fatalf("output = %q", out)
	}
}

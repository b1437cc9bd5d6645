package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/ssh"

	"pkt.systems/blinx/internal/chrome"
	"pkt.systems/blinx/internal/eventbus"
	"pkt.systems/blinx/internal/version"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// Shell is the part of the browser shell a remote chrome drives.
type Shell interface {
	chrome.Controller
	Subscribe(types ...eventbus.EventType) (<-chan eventbus.Event, func())
	Theme() schema.ThemeName
}

// Server exposes the terminal chrome over SSH so the browser can be driven
// from another machine.
type Server struct {
	Config   Config
	Shell    Shell
	Listener net.Listener
	logger   pslog.Logger
}

type authContextKey string

const loginPubKeyOK authContextKey = "login-pubkey-ok"

// ListenAndServe serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx).With("component", "sshserver")
	}
	if s.Shell == nil {
		return errors.New("shell is required for SSH")
	}
	if strings.TrimSpace(s.Config.AuthorizedKeys) == "" {
		return errors.New("ssh authorized keys file is required")
	}
	if _, err := LoadAuthorizedKeys(s.Config.AuthorizedKeys); err != nil {
		return fmt.Errorf("ssh authorized keys: %w", err)
	}
	signer, err := EnsureHostKey(s.Config.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Config.Addr,
		Version:          version.Product(),
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	if s.Config.TOTPSecret != "" {
		server.KeyboardInteractiveHandler = s.handleKeyboardInteractive
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("ssh server listening", "addr", s.addr(), "totp", s.Config.TOTPSecret != "")

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) addr() string {
	if s.Listener != nil {
		return s.Listener.Addr().String()
	}
	return s.Config.Addr
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	keys, err := LoadAuthorizedKeys(s.Config.AuthorizedKeys)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !keyAuthorized(keys, key) {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	if s.Config.TOTPSecret != "" {
		// The code prompt completes the login.
		ctx.SetValue(loginPubKeyOK, true)
		log.Info("ssh pubkey accepted, code required")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func (s *Server) handleKeyboardInteractive(ctx gliderssh.Context, challenger ssh.KeyboardInteractiveChallenge) bool {
	if ctx.Value(loginPubKeyOK) != true {
		return false
	}
	log := s.logger.With("user", ctx.User(), "remote", remoteAddr(ctx))
	answers, err := challenger(ctx.User(), "", []string{"Verification code: "}, []bool{false})
	if err != nil {
		log.Warn("ssh totp rejected", "reason", "challenge failed", "err", err)
		return false
	}
	if len(answers) != 1 || !totp.Validate(strings.TrimSpace(answers[0]), s.Config.TOTPSecret) {
		log.Warn("ssh totp rejected", "reason", "invalid code")
		return false
	}
	log.Info("ssh totp accepted")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

// sessionShell ends only its own session on quit; the browser keeps running.
type sessionShell struct {
	Shell
	quit func()
}

func (s sessionShell) Quit() { s.quit() }

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	if id := sess.Context().SessionID(); id != "" {
		log = log.With("ssh_session", id)
	}
	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}
	log.Info("ssh session opened", "term", pty.Term)

	ctx, cancel := context.WithCancel(pslog.ContextWithLogger(sess.Context(), log))
	defer cancel()
	var once sync.Once
	ctl := sessionShell{Shell: s.Shell, quit: func() { once.Do(cancel) }}

	events, unsubscribe := s.Shell.Subscribe()
	defer unsubscribe()
	ui := chrome.New(ctl, chrome.Options{
		In:       sess,
		Out:      sess,
		Events:   events,
		Theme:    s.Shell.Theme(),
		Terminal: true,
		Width:    pty.Window.Width,
		Logger:   log,
	})
	ui.SetSize(pty.Window.Width, pty.Window.Height)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case win, ok := <-winCh:
				if !ok {
					return
				}
				ui.SetSize(win.Width, win.Height)
			}
		}
	}()

	if err := ui.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("ssh session chrome failed", "err", err)
	}
	_ = sess.Exit(0)
	log.Info("ssh session closed")
}

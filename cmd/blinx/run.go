package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/blinx"
	"pkt.systems/blinx/internal/appconfig"
	"pkt.systems/blinx/internal/cdpsurface"
	"pkt.systems/blinx/internal/chrome"
	"pkt.systems/blinx/schema"
	"pkt.systems/blinx/sshserver"
	"pkt.systems/pslog"
)

const shutdownTimeout = 10 * time.Second

// errShellQuit ends the run group once the shell has been asked to quit.
var errShellQuit = errors.New("shell quit")

func newRunCmd() *cobra.Command {
	var cfgPath string
	var headless bool
	var remoteURL string
	var profileDir string
	var sshAddr string
	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Open the browser window and the terminal chrome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}
			if remoteURL != "" {
				cfg.Browser.RemoteURL = remoteURL
			}
			if profileDir != "" {
				cfg.ProfileDir = profileDir
			}
			if sshAddr != "" {
				cfg.SSH.Addr = sshAddr
			}
			shellCfg, err := cfg.ShellConfig()
			if err != nil {
				return err
			}
			logger.Info("blinx start",
				"profile", shellCfg.ProfileDir,
				"headless", cfg.Browser.Headless,
				"remote", cfg.Browser.RemoteURL != "",
				"ssh", cfg.SSH.Addr,
			)
			shell, err := blinx.New(cmd.Context(), shellCfg, blinx.ShellDeps{
				Engine: blinx.CDPEngine(browserOptions(cfg, shellCfg, logger)),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			var first string
			if len(args) > 0 {
				first = args[0]
			}
			return runShell(cmd.Context(), shell, first, cfg.SSH, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&headless, "headless", false, "run Chromium without a window")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "attach to a running Chromium DevTools endpoint")
	cmd.Flags().StringVar(&profileDir, "profile", "", "profile directory (overrides config)")
	cmd.Flags().StringVar(&sshAddr, "ssh", "", "serve the terminal chrome over SSH on host:port (overrides config)")
	return cmd
}

func browserOptions(cfg appconfig.Config, shellCfg schema.ShellConfig, logger pslog.Logger) cdpsurface.Options {
	return cdpsurface.Options{
		RemoteURL:    cfg.Browser.RemoteURL,
		ExecPath:     cfg.Browser.ExecPath,
		Headless:     cfg.Browser.Headless,
		UserDataDir:  filepath.Join(shellCfg.ProfileDir, "chromium"),
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		Flags:        cfg.Browser.Flags,
		DownloadDir:  shellCfg.DownloadDir,
		Logger:       logger,
	}
}

// runShell starts shell, drives the terminal chrome until either side quits
// and then shuts the shell down. A non-empty first url opens in a second
// tab next to the homepage. When remote is enabled the chrome is also served
// over SSH for as long as the shell runs.
func runShell(ctx context.Context, shell *blinx.Shell, first string, remote appconfig.SSHConfig, in io.Reader, out io.Writer, logger pslog.Logger) error {
	events, unsubscribe := shell.Subscribe()
	defer unsubscribe()
	ui := chrome.New(shell, chrome.Options{
		In:     in,
		Out:    out,
		Events: events,
		Theme:  shell.Theme(),
		Logger: logger,
	})

	stop := func() error {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return shell.Shutdown(stopCtx)
	}
	if err := shell.Start(ctx); err != nil {
		_ = stop()
		return err
	}
	if first != "" {
		if err := shell.OpenTab(ctx, first); err != nil {
			logger.Warn("open url failed", "url", first, "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ui.Run(gctx)
	})
	if remote.Enabled() {
		server := &sshserver.Server{
			Config: sshserver.Config{
				Addr:           remote.Addr,
				HostKeyPath:    remote.HostKeyPath,
				AuthorizedKeys: remote.AuthorizedKeys,
				TOTPSecret:     remote.TOTPSecret,
			},
			Shell: shell,
		}
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}
	g.Go(func() error {
		select {
		case <-shell.Done():
			return errShellQuit
		case <-gctx.Done():
			return nil
		}
	})
	err := g.Wait()
	if errors.Is(err, errShellQuit) || (errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		err = nil
	}
	if stopErr := stop(); stopErr != nil {
		logger.Warn("shutdown incomplete", "err", stopErr)
		if err == nil {
			err = stopErr
		}
	}
	logger.Info("blinx stopped")
	return err
}

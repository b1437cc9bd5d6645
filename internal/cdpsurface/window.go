package cdpsurface

import (
	"context"
	"errors"

	"github.com/chromedp/cdproto/browser"
)

// Window drives the Chromium window hosting the tabs.
type Window struct {
	b       *Browser
	onClose func()
}

// Window returns the controller for the shell window. onClose runs after the
// browser has been closed by a Close command.
func (b *Browser) Window(onClose func()) *Window {
	return &Window{b: b, onClose: onClose}
}

// Minimize minimizes the window.
func (w *Window) Minimize() {
	go w.apply("minimize", func(state browser.WindowState) []browser.WindowState {
		return []browser.WindowState{browser.WindowStateMinimized}
	})
}

// MaximizeOrRestore maximizes the window, or restores it when it is already
// maximized.
func (w *Window) MaximizeOrRestore() {
	go w.apply("maximize", func(state browser.WindowState) []browser.WindowState {
		switch state {
		case browser.WindowStateMaximized:
			return []browser.WindowState{browser.WindowStateNormal}
		case browser.WindowStateNormal:
			return []browser.WindowState{browser.WindowStateMaximized}
		default:
			// Chromium only leaves minimized or fullscreen through normal.
			return []browser.WindowState{browser.WindowStateNormal, browser.WindowStateMaximized}
		}
	})
}

// Close closes the browser window and ends the session.
func (w *Window) Close() {
	go func() {
		if err := w.b.Close(); err != nil {
			w.b.log.Warn("cdp window close failed", "err", err)
		}
		if w.onClose != nil {
			w.onClose()
		}
	}()
}

func (w *Window) apply(action string, next func(state browser.WindowState) []browser.WindowState) {
	err := w.b.browserDo(func(ctx context.Context) error {
		id := w.b.windowTarget()
		if id == "" {
			return errors.New("no window target")
		}
		windowID, bounds, err := browser.GetWindowForTarget().WithTargetID(id).Do(ctx)
		if err != nil {
			return err
		}
		current := browser.WindowStateNormal
		if bounds != nil && bounds.WindowState != "" {
			current = bounds.WindowState
		}
		for _, state := range next(current) {
			if err := browser.SetWindowBounds(windowID, &browser.Bounds{WindowState: state}).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.b.log.Warn("cdp window command failed", "action", action, "err", err)
		return
	}
	w.b.log.Debug("cdp window command ok", "action", action)
}

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"pkt.systems/blinx"
	"pkt.systems/blinx/internal/appconfig"
	"pkt.systems/blinx/internal/bookmarks"
	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// profile is an offline view of a profile's record stores. A running shell
// watches these files and picks up edits made through it.
type profile struct {
	cfg    schema.ShellConfig
	stores []*persist.Store
	lock   *persist.ProfileLock
}

func loadShellConfig(cfgPath, profileDir string) (schema.ShellConfig, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return schema.ShellConfig{}, err
	}
	if profileDir != "" {
		cfg.ProfileDir = profileDir
	}
	return cfg.ShellConfig()
}

func (p *profile) open(name string, logger pslog.Logger) (*persist.Store, error) {
	store, err := persist.Open(filepath.Join(p.cfg.ProfileDir, name), logger)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	p.stores = append(p.stores, store)
	return store, nil
}

// lockProfile takes the profile lock for commands that must not run next
// to a live shell.
func (p *profile) lockProfile() error {
	lock, err := persist.LockProfile(p.cfg.ProfileDir)
	if err != nil {
		return err
	}
	p.lock = lock
	return nil
}

func (p *profile) bookmarks(logger pslog.Logger) (*bookmarks.Store, error) {
	store, err := p.open(bookmarks.FileName, logger)
	if err != nil {
		return nil, err
	}
	return bookmarks.New(store, logger), nil
}

func (p *profile) state(logger pslog.Logger) (*persist.Store, error) {
	return p.open(blinx.StateFile, logger)
}

func (p *profile) Close() error {
	var errs []error
	for _, store := range p.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.lock.Release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

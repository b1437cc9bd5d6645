package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"pkt.systems/blinx/schema"
)

// ProfileLock holds exclusive ownership of a profile directory.
type ProfileLock struct {
	lock *flock.Flock
}

// LockProfile takes the profile lock or fails with schema.ErrProfileLocked.
func LockProfile(dir string) (*ProfileLock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, schema.ErrProfileLocked)
	}
	return &ProfileLock{lock: lock}, nil
}

// Release drops the lock.
func (l *ProfileLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

// Store persists named JSON values to a single document on disk.
//
// Reads and writes are served from memory. Set schedules an asynchronous
// write that a background goroutine coalesces, so callers never wait on
// disk I/O. Flush forces pending writes out synchronously.
type Store struct {
	path string
	log  pslog.Logger

	mu     sync.Mutex
	values map[string]json.RawMessage
	gen    uint64
	saved  uint64
	last   []byte
	// dirty maps keys changed locally to the generation that changed them,
	// until a write at or past that generation lands.
	dirty map[string]uint64

	writeMu sync.Mutex
	kick    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Open loads the document at path and starts its background writer.
// A missing or unreadable document yields an empty store; only a failure to
// create the parent directory is returned.
func Open(path string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("store", filepath.Base(path))
	}
	s := newStore(path, logger)
	s.load()
	go s.writer()
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(logger pslog.Logger) *Store {
	s := newStore("", logger)
	close(s.done)
	return s
}

func newStore(path string, logger pslog.Logger) *Store {
	return &Store{
		path:   path,
		log:    logger,
		values: make(map[string]json.RawMessage),
		dirty:  make(map[string]uint64),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value stored under key into dst.
func (s *Store) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// GetOr decodes the value under key into dst, or stores def into dst when the
// key is missing or cannot be decoded.
func (s *Store) GetOr(key string, dst any, def any) {
	ok, err := s.Get(key, dst)
	if ok && err == nil {
		return
	}
	if err != nil && s.log != nil {
		s.log.Warn("store value decode failed", "key", key, "err", err)
	}
	data, err := json.Marshal(def)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, dst)
}

// Has reports whether key holds a value.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Set stores value under key and schedules a write.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = data
	s.gen++
	s.dirty[key] = s.gen
	s.mu.Unlock()
	s.schedule()
	return nil
}

// Delete removes key and schedules a write.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.values, key)
	s.gen++
	s.dirty[key] = s.gen
	s.mu.Unlock()
	s.schedule()
}

// Flush writes pending changes to disk before returning.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}
	return s.persist()
}

// Close stops the background writer after a final flush.
func (s *Store) Close() error {
	if s.path == "" {
		return nil
	}
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return s.Flush()
}

func (s *Store) schedule() {
	if s.path == "" {
		return
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
			if err := s.persist(); err != nil && s.log != nil {
				s.log.Warn("store write failed", "err", err)
			}
		}
	}
}

func (s *Store) persist() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.gen == s.saved {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	snapshot := make(map[string]json.RawMessage, len(s.values))
	for key, value := range s.values {
		snapshot[key] = value
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.mu.Lock()
	if gen > s.saved {
		s.saved = gen
	}
	for key, changed := range s.dirty {
		if changed <= gen {
			delete(s.dirty, key)
		}
	}
	s.last = data
	s.mu.Unlock()
	if s.log != nil {
		s.log.Trace("store write ok", "keys", len(snapshot))
	}
	return nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("store load miss")
			}
			return
		}
		if s.log != nil {
			s.log.Warn("store load failed", "err", err)
		}
		return
	}
	values, err := decodeDocument(data)
	if err != nil {
		if s.log != nil {
			s.log.Warn("store load failed", "err", err)
		}
		return
	}
	s.values = values
	s.last = data
	if s.log != nil {
		s.log.Debug("store load ok", "keys", len(values))
	}
}

// reload merges the file contents into memory and reports which keys
// changed. Files we wrote ourselves are ignored, and keys with local changes
// that have not reached disk keep their local value; the pending write puts
// them back.
func (s *Store) reload() ([]string, error) {
	// Holding writeMu means our own rename has either not started or has
	// finished and updated last.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(data, s.last) {
		return nil, nil
	}
	values, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	var changed []string
	for key, value := range values {
		if _, pending := s.dirty[key]; pending {
			continue
		}
		if prev, ok := s.values[key]; !ok || !bytes.Equal(prev, value) {
			changed = append(changed, key)
		}
	}
	for key := range s.values {
		if _, pending := s.dirty[key]; pending {
			continue
		}
		if _, ok := values[key]; !ok {
			changed = append(changed, key)
		}
	}
	for key := range s.dirty {
		if local, ok := s.values[key]; ok {
			values[key] = local
		} else {
			delete(values, key)
		}
	}
	sort.Strings(changed)
	s.values = values
	s.last = data
	return changed, nil
}

func decodeDocument(data []byte) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "store-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

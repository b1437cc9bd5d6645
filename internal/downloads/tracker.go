package downloads

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// Key is the record store key holding the download history.
const Key = "downloads"

// interruptedError marks history entries left in progress by a previous run.
const interruptedError = "interrupted"

// Started announces a new download.
type Started struct {
	ID       schema.DownloadID
	Filename string
	URL      string
	Path     string
	Size     int64
}

// Progress reports download progress as a percentage. Size is the total
// byte count once the engine knows it.
type Progress struct {
	ID      schema.DownloadID
	Percent float64
	Size    int64
}

// Completed reports a finished download.
type Completed struct {
	ID schema.DownloadID
}

// Failed reports an aborted download.
type Failed struct {
	ID    schema.DownloadID
	Error string
}

// Sink receives download record updates.
type Sink interface {
	OnDownloadEvent(event schema.DownloadEvent)
}

// Tracker keeps active downloads in memory and the history on disk.
type Tracker struct {
	mu      sync.Mutex
	store   *persist.Store
	log     pslog.Logger
	sink    Sink
	active  map[schema.DownloadID]*schema.Download
	history []schema.Download
	now     func() time.Time
}

// New loads the download history from store.
func New(store *persist.Store, sink Sink, logger pslog.Logger) *Tracker {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if store == nil {
		store = persist.NewMemory(logger)
	}
	t := &Tracker{
		store:  store,
		log:    logger.With("component", "downloads"),
		sink:   sink,
		active: make(map[schema.DownloadID]*schema.Download),
		now:    time.Now,
	}
	t.store.GetOr(Key, &t.history, []schema.Download{})
	interrupted := 0
	for i := range t.history {
		if t.history[i].Status == schema.DownloadInProgress {
			t.history[i].Status = schema.DownloadFailed
			t.history[i].Error = interruptedError
			interrupted++
		}
	}
	if interrupted > 0 {
		t.log.Info("downloads interrupted by previous run", "count", interrupted)
		t.saveLocked()
	}
	return t
}

// Started registers a download. An id that is active or already in the
// history is ignored.
func (t *Tracker) Started(ev Started) {
	t.mu.Lock()
	if _, ok := t.active[ev.ID]; ok || ev.ID == "" || t.historyIndexLocked(ev.ID) >= 0 {
		t.mu.Unlock()
		t.log.Debug("downloads start ignored", "download", ev.ID)
		return
	}
	download := schema.Download{
		ID:        ev.ID,
		Filename:  ev.Filename,
		URL:       ev.URL,
		Path:      ev.Path,
		Size:      ev.Size,
		Status:    schema.DownloadInProgress,
		StartTime: t.now().UTC(),
	}
	t.active[ev.ID] = &download
	t.history = append([]schema.Download{download}, t.history...)
	t.saveLocked()
	t.mu.Unlock()
	t.log.Info("downloads started", "download", ev.ID, "file", ev.Filename)
	t.emit(download)
}

// Progress updates an active download. Unknown ids are ignored.
func (t *Tracker) Progress(ev Progress) {
	t.mu.Lock()
	download, ok := t.active[ev.ID]
	if !ok {
		t.mu.Unlock()
		return
	}
	download.Progress = clampPercent(ev.Percent)
	if download.Size == 0 && ev.Size > 0 {
		download.Size = ev.Size
		if i := t.historyIndexLocked(ev.ID); i >= 0 {
			t.history[i].Size = ev.Size
			t.saveLocked()
		}
	}
	snapshot := *download
	t.mu.Unlock()
	t.emit(snapshot)
}

func (t *Tracker) historyIndexLocked(id schema.DownloadID) int {
	for i := range t.history {
		if t.history[i].ID == id {
			return i
		}
	}
	return -1
}

// Completed finishes an active download. Unknown or finished ids are ignored.
func (t *Tracker) Completed(ev Completed) {
	now := t.now().UTC()
	t.finish(ev.ID, func(d *schema.Download) {
		d.Status = schema.DownloadCompleted
		d.Progress = 100
		d.CompletedTime = &now
	})
}

// Failed aborts an active download. Unknown or finished ids are ignored.
func (t *Tracker) Failed(ev Failed) {
	t.finish(ev.ID, func(d *schema.Download) {
		d.Status = schema.DownloadFailed
		d.Error = ev.Error
	})
}

func (t *Tracker) finish(id schema.DownloadID, apply func(*schema.Download)) {
	t.mu.Lock()
	download, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	apply(download)
	delete(t.active, id)
	snapshot := *download
	if i := t.historyIndexLocked(id); i >= 0 {
		t.history[i] = snapshot
		t.saveLocked()
	}
	t.mu.Unlock()
	t.log.Info("downloads finished", "download", id, "status", snapshot.Status)
	t.emit(snapshot)
}

// Active returns in-progress downloads, oldest first.
func (t *Tracker) Active() []schema.Download {
	t.mu.Lock()
	out := make([]schema.Download, 0, len(t.active))
	for _, download := range t.active {
		out = append(out, *download)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// History returns the download history, newest first.
func (t *Tracker) History() []schema.Download {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]schema.Download, len(t.history))
	copy(out, t.history)
	return out
}

// Remove drops a download from the history.
func (t *Tracker) Remove(id schema.DownloadID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, download := range t.history {
		if download.ID != id {
			continue
		}
		t.history = append(t.history[:i], t.history[i+1:]...)
		t.saveLocked()
		return nil
	}
	return fmt.Errorf("%s: %w", id, schema.ErrDownloadNotFound)
}

// Clear drops finished downloads from the history and returns how many were
// removed.
func (t *Tracker) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.history[:0]
	for _, download := range t.history {
		if download.Status == schema.DownloadInProgress {
			kept = append(kept, download)
		}
	}
	removed := len(t.history) - len(kept)
	t.history = kept
	if removed > 0 {
		t.saveLocked()
	}
	return removed
}

func (t *Tracker) emit(download schema.Download) {
	if t.sink == nil {
		return
	}
	t.sink.OnDownloadEvent(schema.DownloadEvent{Download: download})
}

func (t *Tracker) saveLocked() {
	if err := t.store.Set(Key, t.history); err != nil {
		t.log.Warn("downloads persist failed", "err", err)
	}
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

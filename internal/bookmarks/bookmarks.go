package bookmarks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

const (
	// FileName is the dedicated document bookmarks are stored in.
	FileName = "bookmarks.json"

	bookmarksKey = "bookmarks"
	foldersKey   = "folders"
)

// AddRequest is the result of the add-bookmark dialog.
type AddRequest struct {
	URL     string
	Title   string
	Favicon string
	Folder  schema.FolderID
}

// Store keeps bookmarks and folders in insertion order.
type Store struct {
	mu        sync.Mutex
	store     *persist.Store
	log       pslog.Logger
	bookmarks []schema.Bookmark
	folders   []schema.BookmarkFolder
	now       func() time.Time
}

// New loads bookmarks from store.
func New(store *persist.Store, logger pslog.Logger) *Store {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if store == nil {
		store = persist.NewMemory(logger)
	}
	s := &Store{
		store: store,
		log:   logger.With("component", "bookmarks"),
		now:   time.Now,
	}
	s.store.GetOr(bookmarksKey, &s.bookmarks, []schema.Bookmark{})
	s.store.GetOr(foldersKey, &s.folders, []schema.BookmarkFolder{})
	return s
}

// Add stores a bookmark confirmed through the dialog. A blank title means the
// dialog was dismissed.
func (s *Store) Add(req AddRequest) (schema.Bookmark, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return schema.Bookmark{}, schema.ErrCanceled
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return schema.Bookmark{}, schema.ErrInvalidURL
	}
	folder := req.Folder
	if folder == "" {
		folder = schema.RootFolder
	}

	s.mu.Lock()
	if folder != schema.RootFolder && s.folderIndexLocked(folder) < 0 {
		s.mu.Unlock()
		return schema.Bookmark{}, fmt.Errorf("%s: %w", folder, schema.ErrFolderNotFound)
	}
	bookmark := schema.Bookmark{
		ID:        schema.BookmarkID(uuid.NewString()),
		URL:       target,
		Title:     title,
		Favicon:   req.Favicon,
		Folder:    folder,
		DateAdded: s.now().UTC(),
	}
	s.bookmarks = append(s.bookmarks, bookmark)
	s.saveBookmarksLocked()
	s.mu.Unlock()
	s.log.Info("bookmark added", "bookmark", bookmark.ID, "folder", folder)
	return bookmark, nil
}

// Remove deletes a bookmark by id.
func (s *Store) Remove(id schema.BookmarkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, bookmark := range s.bookmarks {
		if bookmark.ID != id {
			continue
		}
		s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
		s.saveBookmarksLocked()
		s.log.Info("bookmark removed", "bookmark", id)
		return nil
	}
	return fmt.Errorf("%s: %w", id, schema.ErrBookmarkNotFound)
}

// Get returns a bookmark by id.
func (s *Store) Get(id schema.BookmarkID) (schema.Bookmark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bookmark := range s.bookmarks {
		if bookmark.ID == id {
			return bookmark, true
		}
	}
	return schema.Bookmark{}, false
}

// List returns all bookmarks in insertion order.
func (s *Store) List() []schema.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Bookmark, len(s.bookmarks))
	copy(out, s.bookmarks)
	return out
}

// ListFolder returns the bookmarks filed under folder.
func (s *Store) ListFolder(folder schema.FolderID) ([]schema.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if folder != schema.RootFolder && s.folderIndexLocked(folder) < 0 {
		return nil, fmt.Errorf("%s: %w", folder, schema.ErrFolderNotFound)
	}
	var out []schema.Bookmark
	for _, bookmark := range s.bookmarks {
		if bookmark.Folder == folder {
			out = append(out, bookmark)
		}
	}
	return out, nil
}

// FindByURL returns the first bookmark pointing at target.
func (s *Store) FindByURL(target string) (schema.Bookmark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bookmark := range s.bookmarks {
		if bookmark.URL == target {
			return bookmark, true
		}
	}
	return schema.Bookmark{}, false
}

// IsBookmarked reports whether target is bookmarked.
func (s *Store) IsBookmarked(target string) bool {
	if target == "" {
		return false
	}
	_, ok := s.FindByURL(target)
	return ok
}

// Toggle removes the bookmark for target if one exists, otherwise adds one to
// the bookmarks bar. It reports whether target is bookmarked afterwards.
func (s *Store) Toggle(target, title, favicon string) (bool, error) {
	if existing, ok := s.FindByURL(target); ok {
		if err := s.Remove(existing.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if strings.TrimSpace(title) == "" {
		title = target
	}
	if _, err := s.Add(AddRequest{URL: target, Title: title, Favicon: favicon}); err != nil {
		return false, err
	}
	return true, nil
}

// Folders returns the user-created folders.
func (s *Store) Folders() []schema.BookmarkFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.BookmarkFolder, len(s.folders))
	copy(out, s.folders)
	return out
}

// AddFolder creates a folder.
func (s *Store) AddFolder(title string) (schema.BookmarkFolder, error) {
	title = schema.NormalizeFolderTitle(title)
	if title == "" {
		return schema.BookmarkFolder{}, schema.ErrCanceled
	}
	folder := schema.BookmarkFolder{ID: schema.FolderID(uuid.NewString()), Title: title}
	s.mu.Lock()
	s.folders = append(s.folders, folder)
	s.saveFoldersLocked()
	s.mu.Unlock()
	s.log.Info("bookmark folder added", "folder", folder.ID)
	return folder, nil
}

// RemoveFolder deletes a folder and moves its bookmarks to the bookmarks bar.
func (s *Store) RemoveFolder(id schema.FolderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.folderIndexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%s: %w", id, schema.ErrFolderNotFound)
	}
	s.folders = append(s.folders[:idx], s.folders[idx+1:]...)
	moved := 0
	for i := range s.bookmarks {
		if s.bookmarks[i].Folder == id {
			s.bookmarks[i].Folder = schema.RootFolder
			moved++
		}
	}
	s.saveFoldersLocked()
	if moved > 0 {
		s.saveBookmarksLocked()
	}
	s.log.Info("bookmark folder removed", "folder", id, "moved", moved)
	return nil
}

// Reload re-reads bookmarks after an external change.
func (s *Store) Reload() {
	var bookmarks []schema.Bookmark
	var folders []schema.BookmarkFolder
	s.store.GetOr(bookmarksKey, &bookmarks, []schema.Bookmark{})
	s.store.GetOr(foldersKey, &folders, []schema.BookmarkFolder{})
	s.mu.Lock()
	s.bookmarks = bookmarks
	s.folders = folders
	s.mu.Unlock()
}

func (s *Store) folderIndexLocked(id schema.FolderID) int {
	for i, folder := range s.folders {
		if folder.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) saveBookmarksLocked() {
	if err := s.store.Set(bookmarksKey, s.bookmarks); err != nil {
		s.log.Warn("bookmarks persist failed", "err", err)
	}
}

func (s *Store) saveFoldersLocked() {
	if err := s.store.Set(foldersKey, s.folders); err != nil {
		s.log.Warn("bookmark folders persist failed", "err", err)
	}
}

package bookmarks

import (
	"errors"
	"path/filepath"
	"testing"

	"pkt.systems/blinx/internal/persist"
	"pkt.systems/blinx/schema"
)

func TestAddRequiresTitle(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	if _, err := s.Add(AddRequest{URL: "https://example.com", Title: "  "}); !errors.Is(err, schema.ErrCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("expected no bookmarks after cancel")
	}
}

func TestAddDefaultsToRootFolder(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	bookmark, err := s.Add(AddRequest{URL: "https://example.com", Title: "Example"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if bookmark.Folder != schema.RootFolder {
		t.Fatalf("expected root folder, got %q", bookmark.Folder)
	}
	if bookmark.ID == "" || bookmark.DateAdded.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", bookmark)
	}
	if !s.IsBookmarked("https://example.com") {
		t.Fatalf("expected url to be bookmarked")
	}
}

func TestAddRejectsUnknownFolder(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	_, err := s.Add(AddRequest{URL: "https://example.com", Title: "Example", Folder: "nope"})
	if !errors.Is(err, schema.ErrFolderNotFound) {
		t.Fatalf("expected folder not found, got %v", err)
	}
}

func TestToggleAddsThenRemoves(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	added, err := s.Toggle("https://example.com", "", "icon.png")
	if err != nil || !added {
		t.Fatalf("expected toggle to add, got added=%v err=%v", added, err)
	}
	bookmark, ok := s.FindByURL("https://example.com")
	if !ok || bookmark.Title != "https://example.com" || bookmark.Favicon != "icon.png" {
		t.Fatalf("unexpected bookmark %+v", bookmark)
	}
	added, err = s.Toggle("https://example.com", "Example", "")
	if err != nil || added {
		t.Fatalf("expected toggle to remove, got added=%v err=%v", added, err)
	}
	if s.IsBookmarked("https://example.com") {
		t.Fatalf("expected bookmark removed")
	}
}

func TestRemoveUnknown(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	if err := s.Remove("missing"); !errors.Is(err, schema.ErrBookmarkNotFound) {
		t.Fatalf("expected bookmark not found, got %v", err)
	}
}

func TestRemoveFolderMovesBookmarksToRoot(t *testing.T) {
	s := New(persist.NewMemory(nil), nil)
	folder, err := s.AddFolder("  Reading   list ")
	if err != nil {
		t.Fatalf("add folder: %v", err)
	}
	if folder.Title != "Reading list" {
		t.Fatalf("expected normalized title, got %q", folder.Title)
	}
	if _, err := s.Add(AddRequest{URL: "https://go.dev", Title: "Go", Folder: folder.ID}); err != nil {
		t.Fatalf("add to folder: %v", err)
	}
	inFolder, err := s.ListFolder(folder.ID)
	if err != nil || len(inFolder) != 1 {
		t.Fatalf("expected one bookmark in folder, got %d err=%v", len(inFolder), err)
	}
	if err := s.RemoveFolder(folder.ID); err != nil {
		t.Fatalf("remove folder: %v", err)
	}
	root, err := s.ListFolder(schema.RootFolder)
	if err != nil || len(root) != 1 {
		t.Fatalf("expected bookmark moved to root, got %d err=%v", len(root), err)
	}
	if len(s.Folders()) != 0 {
		t.Fatalf("expected folder removed")
	}
}

func TestBookmarksPersistInDedicatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	store, err := persist.Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := New(store, nil)
	if _, err := s.Add(AddRequest{URL: "https://example.com", Title: "Example"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := persist.Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	again := New(reopened, nil)
	list := again.List()
	if len(list) != 1 || list[0].Title != "Example" {
		t.Fatalf("expected persisted bookmark, got %+v", list)
	}
}

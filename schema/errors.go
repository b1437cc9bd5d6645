package schema

import "errors"

var (
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoActiveTab indicates an intent arrived before any tab exists.
	ErrNoActiveTab = errors.New("no active tab")
	// ErrInvalidURL indicates a navigation target could not be parsed.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidInternalURL indicates an internal:// path outside the whitelist.
	ErrInvalidInternalURL = errors.New("invalid internal url")
	// ErrSurfaceUnavailable indicates a rendering surface could not be created.
	ErrSurfaceUnavailable = errors.New("rendering surface unavailable")
	// ErrBookmarkNotFound indicates a requested bookmark could not be found.
	ErrBookmarkNotFound = errors.New("bookmark not found")
	// ErrFolderNotFound indicates a requested bookmark folder could not be found.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrDownloadNotFound indicates a requested download record could not be found.
	ErrDownloadNotFound = errors.New("download not found")
	// ErrCanceled indicates a dialog-mediated operation was dismissed.
	ErrCanceled = errors.New("canceled")
	// ErrUnknownSetting indicates a settings key is not recognised.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting indicates a settings value failed validation.
	ErrInvalidSetting = errors.New("invalid setting value")
	// ErrProfileLocked indicates another shell holds the profile directory.
	ErrProfileLocked = errors.New("profile is locked by another instance")
)

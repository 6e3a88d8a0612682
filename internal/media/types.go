// Package media implements the download-and-deliver pipeline pieces:
// URL extraction, request-unique output naming, the yt-dlp fetcher and its
// bounded dispatcher, output discovery, delivery classification, the size
// guard and cleanup of produced files.
package media

import (
	"errors"
	"fmt"
)

// Mode selects the fetch configuration and the classification rules.
// A deployment serves exactly one mode.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video" // video or photos
)

// Fetch failure causes.
var (
	// ErrExtraction means the backend could not resolve the URL or returned no media.
	ErrExtraction = errors.New("extraction error")
	// ErrUnknown covers every other fetch failure: missing binary, timeout, I/O.
	ErrUnknown = errors.New("unknown error")
)

// Post-fetch failures.
var (
	ErrNoFileFound = errors.New("no file found")
	ErrTooLarge    = errors.New("file too large")
)

// FetchError is returned by a failed fetch. Cause is ErrExtraction or ErrUnknown.
type FetchError struct {
	URL   string
	Cause error
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Cause, e.Err)
}

// Unwrap exposes both the cause and the underlying error to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}

// DiscoveredFile is a file found on disk after a fetch, matching the request's prefix.
type DiscoveredFile struct {
	Path string
	Ext  string // lowercased, without the dot
	Size int64
}

package controllers

import "time"

// listingEntry is one child in a directory listing, keyed by name with a
// trailing "/" for directories.
type listingEntry struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

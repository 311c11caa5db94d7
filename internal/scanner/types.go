package scanner

import (
	"time"

	"github.com/linkarr/linkarr/internal/enrich"
)

// FileState is one cached stat result.
type FileState struct {
	MTime int64  `json:"mtime"`
	Size  int64  `json:"size"`
	ID    string `json:"id"`
}

// Cache is the incremental-scan state for one library path.
type Cache struct {
	Files         map[string]FileState `json:"files"`
	Dirs          map[string]int64     `json:"dirs"`
	InitialScanAt time.Time            `json:"initialScanAt"`
}

// Item is one file in a scan artifact.
type Item struct {
	ID            string        `json:"id"`
	CanonicalPath string        `json:"canonicalPath"`
	ScannedAt     time.Time     `json:"scannedAt"`
	Enrichment    *enrich.Entry `json:"enrichment,omitempty"`
}

// Artifact is one materialized scan result. Items whose entries are
// applied or hidden never appear in it.
type Artifact struct {
	ID                  string    `json:"id"`
	LibraryID           string    `json:"libraryId"`
	Items               []Item    `json:"items"`
	TotalCount          int       `json:"totalCount"`
	GeneratedAt         time.Time `json:"generatedAt"`
	Username            string    `json:"username,omitempty"`
	IncrementalScanPath string    `json:"incrementalScanPath,omitempty"`
}

// Diff is what an incremental walk found.
type Diff struct {
	ToProcess []string
	Removed   []string
	Cache     *Cache
}

// HideEvent records that paths were hidden or re-injected so polling
// clients can reconcile their lists.
type HideEvent struct {
	TS              time.Time `json:"ts"`
	Path            string    `json:"path"`
	OriginalPath    string    `json:"originalPath,omitempty"`
	ModifiedScanIDs []string  `json:"modifiedScanIds,omitempty"`
}

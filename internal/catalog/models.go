package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies catalog items.
type Kind string

const (
	KindFolder  Kind = "folder"
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
	KindAudio   Kind = "audio"
)

// MediaKinds are the file-backed kinds a library sweep looks at.
var MediaKinds = []Kind{KindMovie, KindEpisode, KindAudio}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindFolder, KindMovie, KindEpisode, KindAudio:
		return k, true
	}
	return "", false
}

// UpdateKind describes why an item was saved.
type UpdateKind int

const (
	UpdateNone UpdateKind = iota
	UpdateMetadataImport
	UpdateMetadataEdit
)

func (u UpdateKind) String() string {
	switch u {
	case UpdateMetadataImport:
		return "metadata_import"
	case UpdateMetadataEdit:
		return "metadata_edit"
	default:
		return "none"
	}
}

// Item is a catalog entry. Path is empty for items that are not file-backed.
// A zero ParentID means the item sits at the library root.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Path        string    `json:"path,omitempty"`
	ParentID    uuid.UUID `json:"parentId"`
	DateCreated time.Time `json:"dateCreated"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// pathNamespace scopes path-derived IDs.
var pathNamespace = uuid.MustParse("6f1b7c0e-4d7a-5c39-9f52-8c2a1e0d3b47")

// PathID derives a stable ID from a file path so re-indexing the same path
// always yields the same item and parents can be referenced before insert.
func PathID(path string) uuid.UUID {
	return uuid.NewSHA1(pathNamespace, []byte(path))
}

// NewID returns a random ID for items that are not file-backed.
func NewID() uuid.UUID {
	return uuid.New()
}

// Clone returns a copy safe to hand to another goroutine.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// HasParent reports whether the item has a parent item.
func (i *Item) HasParent() bool {
	return i.ParentID != uuid.Nil
}

// Query selects items. Kinds empty means every kind. With a zero ParentID the
// query starts at the library root; Recursive includes all descendants
// instead of direct children only.
type Query struct {
	Kinds     []Kind
	ParentID  uuid.UUID
	Recursive bool
}

// Stats summarizes the catalog.
type Stats struct {
	ItemsByKind map[Kind]int `json:"itemsByKind"`
	Total       int          `json:"total"`
	BadDates    int          `json:"badDates"`
}

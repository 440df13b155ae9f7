package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
)

// Conventional metadata keys populated by search backends. Backends may
// attach additional keys; consumers must tolerate missing ones.
const (
	MetaCreator      = "creator"
	MetaYear         = "year"
	MetaThumbnailURL = "thumbnail_url"
	MetaDetailsURL   = "details_url"
)

// SourceImage represents one archive item discovered during search.
type SourceImage struct {
	ExternalID  string            `json:"identifier"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	LocalPath   string            `json:"-"` // set after thumbnail download
}

// Meta returns the metadata value for key, or "" when absent.
func (s *SourceImage) Meta(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// ThumbnailURL returns the conventional thumbnail URL metadata value.
func (s *SourceImage) ThumbnailURL() string { return s.Meta(MetaThumbnailURL) }

// DetailsURL returns the conventional details URL metadata value.
func (s *SourceImage) DetailsURL() string { return s.Meta(MetaDetailsURL) }

// Fragment is one segmented visual region extracted from a source image.
// The RGBA image carries the segmentation mask in its alpha channel, so
// pixels outside the mask are fully transparent.
type Fragment struct {
	SourceID    string
	Image       *image.NRGBA
	BoundingBox image.Rectangle // source-pixel coordinates
	Label       string          // "unknown" until annotation
	Description string          // empty until annotation
}

// FragmentID derives a stable identifier from the fragment's source,
// bounding box, and label. Fragments are never persisted with an explicit
// id in early pipeline stages, so the curator's selection-by-id depends on
// this derivation staying deterministic within a run.
func (f *Fragment) FragmentID() string {
	b := f.BoundingBox
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d,%d,%d,%d|%s",
		f.SourceID, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, f.Label)))
	return hex.EncodeToString(sum[:])[:16]
}

// PlanItem is a recorded search intent that has not yet been executed
// against the real search backend. Zero values mean the field was not
// provided by the planning model.
type PlanItem struct {
	Keywords   string `json:"keywords"`
	Collection string `json:"collection,omitempty"`
	DateFilter string `json:"date_filter,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// ProvenanceRecord traces one placed fragment back to its origin.
type ProvenanceRecord struct {
	FragmentID  string  `json:"fragment_id"`
	SourceID    string  `json:"source_id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	BoundingBox [4]int  `json:"bounding_box"`
	Position    [2]int  `json:"position"`
	Scale       float64 `json:"scale,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// CollageOutput is the final composed collage plus the provenance of every
// fragment actually painted onto the canvas.
type CollageOutput struct {
	Image      *image.NRGBA
	Width      int
	Height     int
	Provenance []ProvenanceRecord
}

package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// FileInfo describes the uploaded audio file backing a song.
type FileInfo struct {
	OriginalName   string  `json:"originalName"`
	StoredName     string  `json:"filename"`
	ObjectKey      string  `json:"objectKey"`
	Size           int64   `json:"fileSize"`
	MimeType       string  `json:"mimeType"`
	ProbedDuration float64 `json:"probedDuration,omitempty"`
}

// Song is an uploaded recording together with its analysis. The two are
// created and destroyed as one unit.
type Song struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Artist    string         `json:"artist"`
	File      FileInfo       `json:"file"`
	OwnerID   string         `json:"ownerId"`
	Analysis  AnalysisRecord `json:"analysis"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the song.
func (s Song) Clone() Song {
	out := s
	out.Analysis = s.Analysis.Clone()
	return out
}

// CleanArtist trims and bounds an optional artist name.
func CleanArtist(artist string) (string, error) {
	artist = strings.TrimSpace(artist)
	if utf8.RuneCountInString(artist) > MaxNameLength {
		return "", Invalid("artist", "must be at most %d characters", MaxNameLength)
	}
	return artist, nil
}

// AllowedAudioTypes lists the mime types accepted for ingestion.
var AllowedAudioTypes = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/flac":  ".flac",
	"audio/mp4":   ".m4a",
}

// AudioExtension returns the canonical file extension for an allowed mime
// type, and false when the type is not accepted.
func AudioExtension(mimeType string) (string, bool) {
	ext, ok := AllowedAudioTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	return ext, ok
}

// Page is one slice of an owner-scoped listing.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

// Pages is the number of pages needed for Total at Limit per page.
func (p Page[T]) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

const MaxPageLimit = 100

// ValidatePaging checks 1-based page and a bounded positive limit.
func ValidatePaging(page, limit int) error {
	if page < 1 {
		return Invalid("page", "must be >= 1, got %d", page)
	}
	if limit < 1 || limit > MaxPageLimit {
		return Invalid("limit", "must be in [1, %d], got %d", MaxPageLimit, limit)
	}
	return nil
}

// CleanTitle trims and bounds a song title.
func CleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", Invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxNameLength {
		return "", Invalid("title", "must be at most %d characters", MaxNameLength)
	}
	return title, nil
}

package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength        = 200
	MaxDescriptionLength = 1000
	MaxTagLength         = 50
	MaxTags              = 30
)

// Arrangement is a user-owned, editable combination of a song reference, a
// section timeline and a suggestion snapshot. SongID is a lookup key only;
// the arrangement never holds the song's analysis.
type Arrangement struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SongID      string          `json:"songId"`
	OwnerID     string          `json:"ownerId"`
	Sections    SectionTimeline `json:"sections"`
	Suggestions []Suggestion    `json:"suggestions"`
	IsPublic    bool            `json:"isPublic"`
	Tags        []string        `json:"tags"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the arrangement.
func (a Arrangement) Clone() Arrangement {
	out := a
	out.Sections = a.Sections.Clone()
	if a.Suggestions != nil {
		out.Suggestions = make([]Suggestion, len(a.Suggestions))
		copy(out.Suggestions, a.Suggestions)
	}
	if a.Tags != nil {
		out.Tags = make([]string, len(a.Tags))
		copy(out.Tags, a.Tags)
	}
	return out
}

// ArrangementPatch carries a partial update. Nil fields are left untouched;
// a non-nil Sections replaces the whole timeline.
type ArrangementPatch struct {
	Name            *string
	Description     *string
	Sections        *SectionTimeline
	IsPublic        *bool
	Tags            *[]string
	ExpectedVersion *int
}

// Apply validates the patch and writes it onto a copy of a. The caller is
// responsible for the version bump and timestamps.
func (p ArrangementPatch) Apply(a Arrangement) (Arrangement, error) {
	out := a.Clone()
	if p.Name != nil {
		name, err := CleanName(*p.Name)
		if err != nil {
			return Arrangement{}, err
		}
		out.Name = name
	}
	if p.Description != nil {
		desc, err := CleanDescription(*p.Description)
		if err != nil {
			return Arrangement{}, err
		}
		out.Description = desc
	}
	if p.Sections != nil {
		if err := p.Sections.Validate(); err != nil {
			return Arrangement{}, err
		}
		out.Sections = p.Sections.Normalize()
		if out.Sections == nil {
			out.Sections = SectionTimeline{}
		}
	}
	if p.IsPublic != nil {
		out.IsPublic = *p.IsPublic
	}
	if p.Tags != nil {
		tags, err := NormalizeTags(*p.Tags)
		if err != nil {
			return Arrangement{}, err
		}
		out.Tags = tags
	}
	return out, nil
}

// CleanName trims and bounds an arrangement or song name.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", Invalid("name", "must be at most %d characters", MaxNameLength)
	}
	return name, nil
}

// CleanDescription trims and bounds a description; empty is allowed.
func CleanDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return "", Invalid("description", "must be at most %d characters", MaxDescriptionLength)
	}
	return desc, nil
}

package domain

import (
	"fmt"
	"sort"
)

// Section is one user-editable entry of an arrangement's timeline.
type Section struct {
	ID          string  `json:"id"`
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
	SectionType string  `json:"sectionType"`
	CustomName  string  `json:"customName"`
	Notes       string  `json:"notes"`
	Order       int     `json:"order"`
}

// SectionTimeline is the ordered sequence of sections owned by an
// arrangement. Gaps and overlaps are allowed; user edits are trusted.
type SectionTimeline []Section

// SeedTimeline derives a timeline 1:1 from the detected sections of an
// analysis. IDs are stable ("section-<index>") and the custom name defaults
// to the section type.
func SeedTimeline(a AnalysisRecord) SectionTimeline {
	out := make(SectionTimeline, 0, len(a.Sections))
	for i, s := range a.Sections {
		out = append(out, Section{
			ID:          fmt.Sprintf("section-%d", i),
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			SectionType: s.SectionType,
			CustomName:  s.SectionType,
			Notes:       "",
			Order:       i,
		})
	}
	return out
}

// Validate enforces the timeline invariants: non-empty unique ids,
// non-negative times and start <= end. Contiguity is not checked.
func (t SectionTimeline) Validate() error {
	seen := make(map[string]int, len(t))
	for i, s := range t {
		if s.ID == "" {
			return Invalid("sections", "section %d: id is required", i)
		}
		if prev, dup := seen[s.ID]; dup {
			return Invalid("sections", "section %d: id %q already used by section %d", i, s.ID, prev)
		}
		seen[s.ID] = i
		if s.StartTime < 0 || s.EndTime < 0 {
			return Invalid("sections", "section %d: times must be non-negative", i)
		}
		if s.StartTime > s.EndTime {
			return Invalid("sections", "section %d: start %v is after end %v", i, s.StartTime, s.EndTime)
		}
	}
	return nil
}

// Normalize returns a copy sorted by Order. Equal orders keep their
// original relative position.
func (t SectionTimeline) Normalize() SectionTimeline {
	out := t.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Clone returns a copy that does not share backing storage with t.
func (t SectionTimeline) Clone() SectionTimeline {
	if t == nil {
		return nil
	}
	out := make(SectionTimeline, len(t))
	copy(out, t)
	return out
}

// SectionsInput selects how an arrangement's timeline is built at creation:
// seeded from the song's analysis, or supplied explicitly by the caller.
type SectionsInput struct {
	explicit SectionTimeline
	isSet    bool
}

// SeededSections asks for the timeline to be derived from the analysis.
func SeededSections() SectionsInput {
	return SectionsInput{}
}

// ExplicitSections replaces the seed entirely with the given timeline. An
// empty, non-nil timeline is a valid explicit choice.
func ExplicitSections(t SectionTimeline) SectionsInput {
	if t == nil {
		t = SectionTimeline{}
	}
	return SectionsInput{explicit: t.Clone(), isSet: true}
}

// IsExplicit reports whether the caller supplied the timeline.
func (in SectionsInput) IsExplicit() bool {
	return in.isSet
}

// Resolve produces the timeline for an arrangement created from a.
func (in SectionsInput) Resolve(a AnalysisRecord) (SectionTimeline, error) {
	if !in.isSet {
		return SeedTimeline(a), nil
	}
	if err := in.explicit.Validate(); err != nil {
		return nil, err
	}
	return in.explicit.Normalize(), nil
}

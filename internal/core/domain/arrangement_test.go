package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func baseArrangement() Arrangement {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Arrangement{
		ID:          "arr-1",
		Name:        "Radio edit",
		Description: "short",
		SongID:      "song-1",
		OwnerID:     "user-1",
		Sections:    SectionTimeline{{ID: "section-0", EndTime: 10, SectionType: "intro", CustomName: "intro"}},
		Suggestions: []Suggestion{{Type: SuggestionTempo, Description: "d", Confidence: 0.7}},
		Tags:        []string{"pop"},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestArrangementPatch_Apply(t *testing.T) {
	str := func(s string) *string { return &s }
	yes := true
	sections := SectionTimeline{
		{ID: "y", StartTime: 10, EndTime: 20, Order: 1},
		{ID: "x", StartTime: 0, EndTime: 10, Order: 0},
	}
	tags := []string{"Lo-Fi", "lo-fi", ""}

	tests := []struct {
		name    string
		patch   ArrangementPatch
		check   func(t *testing.T, got Arrangement)
		wantErr bool
	}{
		{
			name:  "empty patch keeps everything",
			patch: ArrangementPatch{},
			check: func(t *testing.T, got Arrangement) {
				if !reflect.DeepEqual(got, baseArrangement()) {
					t.Fatalf("got %+v", got)
				}
			},
		},
		{
			name:  "name is trimmed",
			patch: ArrangementPatch{Name: str("  Club mix  ")},
			check: func(t *testing.T, got Arrangement) {
				if got.Name != "Club mix" {
					t.Fatalf("Name = %q", got.Name)
				}
			},
		},
		{
			name:  "sections replaced and normalized",
			patch: ArrangementPatch{Sections: &sections},
			check: func(t *testing.T, got Arrangement) {
				if len(got.Sections) != 2 || got.Sections[0].ID != "x" {
					t.Fatalf("Sections = %+v", got.Sections)
				}
			},
		},
		{
			name:  "public flag and tags",
			patch: ArrangementPatch{IsPublic: &yes, Tags: &tags},
			check: func(t *testing.T, got Arrangement) {
				if !got.IsPublic || !reflect.DeepEqual(got.Tags, []string{"Lo-Fi"}) {
					t.Fatalf("got public=%v tags=%q", got.IsPublic, got.Tags)
				}
			},
		},
		{name: "blank name", patch: ArrangementPatch{Name: str(" ")}, wantErr: true},
		{name: "long description", patch: ArrangementPatch{Description: str(strings.Repeat("d", MaxDescriptionLength+1))}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			base := baseArrangement()
			got, err := tc.patch.Apply(base)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			tc.check(t, got)
			if !reflect.DeepEqual(base, baseArrangement()) {
				t.Fatal("Apply mutated its input")
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	if _, err := CleanName(strings.Repeat("é", MaxNameLength)); err != nil {
		t.Fatalf("200 runes should be accepted: %v", err)
	}
	if _, err := CleanName(strings.Repeat("é", MaxNameLength+1)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "case duplicates keep first spelling", in: []string{"Rock", "rock", "ROCK"}, want: []string{"Rock"}},
		{name: "trimmed only", in: []string{"  drum__and   bass "}, want: []string{"drum__and   bass"}},
		{name: "punctuation kept", in: []string{"R&B", "C++", "lo-fi #1"}, want: []string{"R&B", "C++", "lo-fi #1"}},
		{name: "empties dropped", in: []string{"", "  ", "\t"}, want: []string{}},
		{name: "too many", in: manyTags(MaxTags + 1), wantErr: true},
		{name: "too long", in: []string{strings.Repeat("a", MaxTagLength+1)}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTags(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTags: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func manyTags(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("tag-%d", i)
	}
	return out
}

func TestPagePages(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}
	for _, tc := range tests {
		p := Page[int]{Total: tc.total, Limit: tc.limit}
		if got := p.Pages(); got != tc.want {
			t.Errorf("Pages(total=%d, limit=%d) = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}

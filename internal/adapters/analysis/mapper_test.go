package analysis

import (
	"reflect"
	"testing"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

func TestMapResult_Defaults(t *testing.T) {
	got := MapResult(Result{Duration: 60, Tempo: 100, Key: " D "})

	want := domain.AnalysisRecord{
		Duration:      60,
		Tempo:         100,
		Key:           "D",
		TimeSignature: domain.DefaultTimeSignature,
		Sections:      []domain.DetectedSection{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestMapResult_KeepsSectionsVerbatim(t *testing.T) {
	// Overlapping and out-of-range values are passed through untouched.
	in := Result{
		TimeSignature: "3/4",
		Sections: []wireSection{
			{StartTime: 10, EndTime: 20, SectionType: "chorus", Confidence: 1.2},
			{StartTime: 5, EndTime: 15, SectionType: "verse", Confidence: 0.4},
		},
		RhythmFeatures: &wireRhythm{BeatCount: 41.6, OnsetCount: 7},
	}

	got := MapResult(in)

	if got.TimeSignature != "3/4" {
		t.Errorf("TimeSignature = %q", got.TimeSignature)
	}
	if len(got.Sections) != 2 || got.Sections[0].SectionType != "chorus" || got.Sections[0].Confidence != 1.2 {
		t.Errorf("Sections = %+v", got.Sections)
	}
	if got.RhythmFeatures.BeatCount != 42 || got.RhythmFeatures.OnsetCount != 7 {
		t.Errorf("RhythmFeatures = %+v", got.RhythmFeatures)
	}
	if got.SpectralFeatures != (domain.SpectralFeatures{}) {
		t.Errorf("missing spectral block should be zero, got %+v", got.SpectralFeatures)
	}
}

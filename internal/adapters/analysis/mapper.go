package analysis

import (
	"math"
	"strings"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

// MapResult converts a collaborator response into an AnalysisRecord. It is
// total: missing feature blocks become zero values, a missing time
// signature becomes domain.DefaultTimeSignature, and sections are copied
// verbatim in the order received.
func MapResult(r Result) domain.AnalysisRecord {
	out := domain.AnalysisRecord{
		Duration:      r.Duration,
		Tempo:         r.Tempo,
		Key:           strings.TrimSpace(r.Key),
		TimeSignature: strings.TrimSpace(r.TimeSignature),
		Energy:        r.Energy,
		Danceability:  r.Danceability,
		Sections:      make([]domain.DetectedSection, 0, len(r.Sections)),
	}
	if out.TimeSignature == "" {
		out.TimeSignature = domain.DefaultTimeSignature
	}

	for _, s := range r.Sections {
		out.Sections = append(out.Sections, domain.DetectedSection{
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			SectionType: s.SectionType,
			Confidence:  s.Confidence,
		})
	}

	if sf := r.SpectralFeatures; sf != nil {
		out.SpectralFeatures = domain.SpectralFeatures{
			SpectralCentroidMean:  sf.SpectralCentroidMean,
			SpectralRolloffMean:   sf.SpectralRolloffMean,
			SpectralBandwidthMean: sf.SpectralBandwidthMean,
			ZeroCrossingRateMean:  sf.ZeroCrossingRateMean,
		}
	}
	if rf := r.RhythmFeatures; rf != nil {
		out.RhythmFeatures = domain.RhythmFeatures{
			Tempo:            rf.Tempo,
			BeatCount:        int(math.Round(rf.BeatCount)),
			OnsetCount:       int(math.Round(rf.OnsetCount)),
			RhythmRegularity: rf.RhythmRegularity,
		}
	}
	return out
}

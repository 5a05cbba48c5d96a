package domain

// DetectedSection is one segment reported by the analysis collaborator.
type DetectedSection struct {
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
	SectionType string  `json:"sectionType"`
	Confidence  float64 `json:"confidence"`
}

// SpectralFeatures holds frame-averaged spectral descriptors.
type SpectralFeatures struct {
	SpectralCentroidMean  float64 `json:"spectralCentroidMean"`
	SpectralRolloffMean   float64 `json:"spectralRolloffMean"`
	SpectralBandwidthMean float64 `json:"spectralBandwidthMean"`
	ZeroCrossingRateMean  float64 `json:"zeroCrossingRateMean"`
}

// RhythmFeatures holds beat tracking aggregates.
type RhythmFeatures struct {
	Tempo            float64 `json:"tempo"`
	BeatCount        int     `json:"beatCount"`
	OnsetCount       int     `json:"onsetCount"`
	RhythmRegularity float64 `json:"rhythmRegularity"`
}

// AnalysisRecord is the structural description of one song. It is written
// once at ingestion and never modified afterwards.
type AnalysisRecord struct {
	Duration         float64           `json:"duration"`
	Tempo            float64           `json:"tempo"`
	Key              string            `json:"key"`
	TimeSignature    string            `json:"timeSignature"`
	Energy           float64           `json:"energy"`
	Danceability     float64           `json:"danceability"`
	Sections         []DetectedSection `json:"sections"`
	SpectralFeatures SpectralFeatures  `json:"spectralFeatures"`
	RhythmFeatures   RhythmFeatures    `json:"rhythmFeatures"`
}

// DefaultTimeSignature is used when the collaborator omits one.
const DefaultTimeSignature = "4/4"

// MaxTempo is the upper bound of a plausible tempo in BPM.
const MaxTempo = 400

// Clone returns a deep copy so callers cannot alias the stored sections.
func (a AnalysisRecord) Clone() AnalysisRecord {
	out := a
	if a.Sections != nil {
		out.Sections = make([]DetectedSection, len(a.Sections))
		copy(out.Sections, a.Sections)
	}
	return out
}

// HasSectionType reports whether any detected section has the given type.
func (a AnalysisRecord) HasSectionType(sectionType string) bool {
	for _, s := range a.Sections {
		if s.SectionType == sectionType {
			return true
		}
	}
	return false
}

// Validate checks the ranges a usable record must satisfy. Gaps and overlaps
// between sections are tolerated.
func (a AnalysisRecord) Validate() error {
	if a.Duration <= 0 {
		return Invalid("duration", "must be positive, got %v", a.Duration)
	}
	if a.Tempo <= 0 || a.Tempo > MaxTempo {
		return Invalid("tempo", "must be in (0, %d], got %v", MaxTempo, a.Tempo)
	}
	if !unitInterval(a.Energy) {
		return Invalid("energy", "must be in [0,1], got %v", a.Energy)
	}
	if !unitInterval(a.Danceability) {
		return Invalid("danceability", "must be in [0,1], got %v", a.Danceability)
	}
	for i, s := range a.Sections {
		if s.StartTime >= s.EndTime {
			return Invalid("sections", "section %d: start %v is not before end %v", i, s.StartTime, s.EndTime)
		}
		if !unitInterval(s.Confidence) {
			return Invalid("sections", "section %d: confidence %v out of [0,1]", i, s.Confidence)
		}
	}
	return nil
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

package analysis

// Result is the collaborator's /analyze response body.
type Result struct {
	Duration         float64       `json:"duration"`
	Tempo            float64       `json:"tempo"`
	Key              string        `json:"key"`
	TimeSignature    string        `json:"time_signature"`
	Energy           float64       `json:"energy"`
	Danceability     float64       `json:"danceability"`
	Sections         []wireSection `json:"sections"`
	SpectralFeatures *wireSpectral `json:"spectral_features"`
	RhythmFeatures   *wireRhythm   `json:"rhythm_features"`
}

type wireSection struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	SectionType string  `json:"section_type"`
	Confidence  float64 `json:"confidence"`
}

type wireSpectral struct {
	SpectralCentroidMean  float64 `json:"spectral_centroid_mean"`
	SpectralRolloffMean   float64 `json:"spectral_rolloff_mean"`
	SpectralBandwidthMean float64 `json:"spectral_bandwidth_mean"`
	ZeroCrossingRateMean  float64 `json:"zero_crossing_rate_mean"`
}

// Counts arrive as JSON numbers that may carry a fractional part.
type wireRhythm struct {
	Tempo            float64 `json:"tempo"`
	BeatCount        float64 `json:"beat_count"`
	OnsetCount       float64 `json:"onset_count"`
	RhythmRegularity float64 `json:"rhythm_regularity"`
}

type errorBody struct {
	Detail any `json:"detail"`
}

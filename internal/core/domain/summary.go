package domain

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TimelineSummary is a read-only digest of a timeline's coverage. It is
// informational and never used to reject edits.
type TimelineSummary struct {
	SectionCount int     `json:"sectionCount"`
	CoveredTime  float64 `json:"coveredTime"`
	MeanLength   float64 `json:"meanLength"`
	LengthStdDev float64 `json:"lengthStdDev"`
	Gaps         int     `json:"gaps"`
	Overlaps     int     `json:"overlaps"`
	FirstStart   float64 `json:"firstStart"`
	LastEnd      float64 `json:"lastEnd"`
}

// gapTolerance absorbs float noise between adjacent boundaries.
const gapTolerance = 1e-6

// Summarize computes coverage statistics over the timeline in Order order.
func (t SectionTimeline) Summarize() TimelineSummary {
	if len(t) == 0 {
		return TimelineSummary{}
	}
	ordered := t.Normalize()

	lengths := make([]float64, len(ordered))
	for i, s := range ordered {
		lengths[i] = s.EndTime - s.StartTime
	}

	sum := TimelineSummary{
		SectionCount: len(ordered),
		CoveredTime:  floats.Sum(lengths),
		MeanLength:   stat.Mean(lengths, nil),
		FirstStart:   ordered[0].StartTime,
		LastEnd:      ordered[0].EndTime,
	}
	if len(lengths) > 1 {
		sum.LengthStdDev = stat.StdDev(lengths, nil)
	}

	for i := 1; i < len(ordered); i++ {
		prevEnd := ordered[i-1].EndTime
		start := ordered[i].StartTime
		switch {
		case start > prevEnd+gapTolerance:
			sum.Gaps++
		case start < prevEnd-gapTolerance:
			sum.Overlaps++
		}
		if ordered[i].EndTime > sum.LastEnd {
			sum.LastEnd = ordered[i].EndTime
		}
	}
	return sum
}

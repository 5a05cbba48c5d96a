package domain

// SuggestionType is the closed vocabulary of suggestion categories.
type SuggestionType string

const (
	SuggestionTempo       SuggestionType = "tempo"
	SuggestionEnergy      SuggestionType = "energy"
	SuggestionStructure   SuggestionType = "structure"
	SuggestionArrangement SuggestionType = "arrangement"
)

// Suggestion is a rule-generated recommendation. Only Applied may change
// after generation.
type Suggestion struct {
	Type        SuggestionType `json:"type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Applied     bool           `json:"applied"`
}

// suggestionRule fires when its condition holds for an analysis. Confidence
// and description are constants of the rule, not derived from the values.
type suggestionRule struct {
	kind        SuggestionType
	confidence  float64
	description string
	fires       func(AnalysisRecord) bool
}

// Thresholds of the rule table.
const (
	tempoContrastBPM      = 120
	energyContrastLevel   = 0.7
	simpleStructureMaxLen = 4
	danceExtensionLevel   = 0.6
	introSectionType      = "intro"
)

// suggestionRules is evaluated top to bottom; every rule that fires
// contributes one suggestion and no rule suppresses another. Changing this
// table is a versioned change of the engine.
var suggestionRules = [...]suggestionRule{
	{
		kind:        SuggestionTempo,
		confidence:  0.7,
		description: "Consider adding a breakdown section to create dynamic contrast",
		fires:       func(a AnalysisRecord) bool { return a.Tempo > tempoContrastBPM },
	},
	{
		kind:        SuggestionEnergy,
		confidence:  0.8,
		description: "High energy detected - consider adding a quiet bridge for contrast",
		fires:       func(a AnalysisRecord) bool { return a.Energy > energyContrastLevel },
	},
	{
		kind:        SuggestionStructure,
		confidence:  0.6,
		description: "Simple structure detected - consider adding a pre-chorus or bridge",
		fires:       func(a AnalysisRecord) bool { return len(a.Sections) < simpleStructureMaxLen },
	},
	{
		kind:        SuggestionStructure,
		confidence:  0.5,
		description: "Consider adding an intro section to build anticipation",
		fires:       func(a AnalysisRecord) bool { return !a.HasSectionType(introSectionType) },
	},
	{
		kind:        SuggestionArrangement,
		confidence:  0.7,
		description: "High danceability - consider extending the chorus sections",
		fires:       func(a AnalysisRecord) bool { return a.Danceability > danceExtensionLevel },
	},
}

// GenerateSuggestions runs the rule table against a. It is pure and total:
// the same analysis always yields the same slice in rule order.
func GenerateSuggestions(a AnalysisRecord) []Suggestion {
	out := make([]Suggestion, 0, len(suggestionRules))
	for _, r := range suggestionRules {
		if !r.fires(a) {
			continue
		}
		out = append(out, Suggestion{
			Type:        r.kind,
			Description: r.description,
			Confidence:  r.confidence,
		})
	}
	return out
}

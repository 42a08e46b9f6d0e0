package intent

import (
	"regexp"

	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/dataset"
)

const HeuristicConfidence = 0.3

var (
	greetingPattern    = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|howdy|good (morning|afternoon|evening)|thanks|thank you|thx|bye|goodbye|see you)\b`)
	correlationPattern = regexp.MustCompile(`(?i)what (affects|drives|impacts|influences)|correlat|influence|relationship between`)
	chartPattern       = regexp.MustCompile(`(?i)\b(chart|graph|plot|visuali[sz]e)\b`)
)

// Heuristic classifies by keywords alone. Anything but a greeting asks for
// clarification.
func Heuristic(question string, summary dataset.Summary) Intent {
	in := Intent{
		Type:             TypeCustom,
		Confidence:       HeuristicConfidence,
		OriginalQuestion: question,
		Heuristic:        true,
	}
	switch {
	case greetingPattern.MatchString(question):
		in.Type = TypeConversational
	case correlationPattern.MatchString(question):
		in.Type = TypeCorrelation
	case chartPattern.MatchString(question):
		in.Type = TypeChart
	}
	in.RequiresClarification = in.Type != TypeConversational

	if cols := column.Mentioned(question, summary.ColumnNames()); len(cols) > 0 {
		in.TargetVariable = cols[0]
		in.Variables = cols[1:]
	}
	return in
}

package handler

import (
	"regexp"
	"strings"

	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
)

// chartRequest is what a detector extracts from a question.
type chartRequest struct {
	Type        chart.Type
	X, Y, Y2    string
	Aggregate   chart.Aggregate
	Correlation bool
	// Base is the chart being extended, for secondary-axis requests.
	Base *chart.Spec
}

// chartRule is one entry of the ordered detector table. Detect returns false
// when the phrasing does not match or its columns do not resolve.
type chartRule struct {
	Name   string
	Detect func(question string, hc *Context) (chartRequest, bool)
}

const (
	RuleSecondaryAxis = "secondary_axis"
	RuleCorrelation   = "correlation_between"
	RuleScatter       = "scatter"
	RuleTwoSeries     = "two_series"
	RuleAgainst       = "against"
	RuleVersus        = "versus"
)

var (
	secondaryAxisPattern = regexp.MustCompile(`(?i)\badd\s+(?:the\s+)?(.+?)\s+(?:on|to|as)\s+(?:a|the)?\s*(?:secondary|second|right)\s+(?:y[\s-]?)?axis\b`)
	correlationPattern   = regexp.MustCompile(`(?i)\bcorrelation\s+(?:between|of)\s+(.+?)\s+(?:and|with|vs\.?|versus)\s+(.+?)\s*[?.!]*$`)
	scatterPattern       = regexp.MustCompile(`(?i)\bscatter\s*(?:plot|chart|graph)?\s+(?:of\s+)?(.+?)\s+(?:vs\.?|versus|against|and|by)\s+(.+?)\s*[?.!]*$`)
	twoSeriesPattern     = regexp.MustCompile(`(?i)\b(?:plot|show|chart|graph|draw|compare)\s+(?:me\s+)?(?:the\s+)?(.+?)\s+and\s+(.+?)\s+(?:over|by|across|per)\s+(.+?)\s*[?.!]*$`)
	againstPattern       = regexp.MustCompile(`(?i)^(?:(?:plot|show|chart|graph|draw)\s+(?:me\s+)?)?(?:the\s+)?(.+?)\s+against\s+(.+?)\s*[?.!]*$`)
	versusPattern        = regexp.MustCompile(`(?i)^(?:(?:plot|show|chart|graph|draw|compare)\s+(?:me\s+)?)?(?:the\s+)?(.+?)\s+(?:vs\.?|versus|compared (?:to|with))\s+(.+?)\s*[?.!]*$`)
)

// chartRules is ordered from most to least specific.
var chartRules = []chartRule{
	{Name: RuleSecondaryAxis, Detect: detectSecondaryAxis},
	{Name: RuleCorrelation, Detect: detectCorrelation},
	{Name: RuleScatter, Detect: detectScatter},
	{Name: RuleTwoSeries, Detect: detectTwoSeries},
	{Name: RuleAgainst, Detect: detectAgainst},
	{Name: RuleVersus, Detect: detectVersus},
}

// MatchChartRule runs the detector table in order and reports the first hit.
func MatchChartRule(question string, hc *Context) (string, chartRequest, bool) {
	for _, r := range chartRules {
		if req, ok := r.Detect(question, hc); ok {
			return r.Name, req, true
		}
	}
	return "", chartRequest{}, false
}

func resolvePhrase(phrase string, summary dataset.Summary) (string, bool) {
	phrase = strings.TrimSpace(phrase)
	phrase = strings.TrimPrefix(strings.TrimPrefix(phrase, "the "), "The ")
	return column.Resolve(phrase, summary.ColumnNames())
}

func detectSecondaryAxis(question string, hc *Context) (chartRequest, bool) {
	m := secondaryAxisPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	y2, ok := resolvePhrase(m[1], hc.Summary)
	if !ok || !hc.Summary.IsNumeric(y2) {
		return chartRequest{}, false
	}
	base := lastChart(hc.History)
	if base == nil || base.Y == y2 {
		return chartRequest{}, false
	}
	return chartRequest{Type: chart.TypeLine, X: base.X, Y: base.Y, Y2: y2, Aggregate: base.Aggregate, Base: base}, true
}

func detectCorrelation(question string, hc *Context) (chartRequest, bool) {
	m := correlationPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	a, okA := resolvePhrase(m[1], hc.Summary)
	b, okB := resolvePhrase(m[2], hc.Summary)
	if !okA || !okB || a == b || !hc.Summary.IsNumeric(a) || !hc.Summary.IsNumeric(b) {
		return chartRequest{}, false
	}
	return chartRequest{Type: chart.TypeScatter, X: a, Y: b, Aggregate: chart.AggregateNone, Correlation: true}, true
}

func detectScatter(question string, hc *Context) (chartRequest, bool) {
	m := scatterPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	y, okY := resolvePhrase(m[1], hc.Summary)
	x, okX := resolvePhrase(m[2], hc.Summary)
	if !okX || !okY || x == y || !hc.Summary.IsNumeric(x) || !hc.Summary.IsNumeric(y) {
		return chartRequest{}, false
	}
	return chartRequest{Type: chart.TypeScatter, X: x, Y: y, Aggregate: chart.AggregateNone}, true
}

func detectTwoSeries(question string, hc *Context) (chartRequest, bool) {
	m := twoSeriesPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	y, okY := resolvePhrase(m[1], hc.Summary)
	y2, okY2 := resolvePhrase(m[2], hc.Summary)
	x, okX := resolvePhrase(m[3], hc.Summary)
	if !okX || !okY || !okY2 || y == y2 || !hc.Summary.IsNumeric(y) || !hc.Summary.IsNumeric(y2) {
		return chartRequest{}, false
	}
	return chartRequest{Type: chart.TypeLine, X: x, Y: y, Y2: y2, Aggregate: chart.AggregateSum}, true
}

func detectAgainst(question string, hc *Context) (chartRequest, bool) {
	m := againstPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	return pairChart(m[1], m[2], hc)
}

func detectVersus(question string, hc *Context) (chartRequest, bool) {
	m := versusPattern.FindStringSubmatch(question)
	if m == nil {
		return chartRequest{}, false
	}
	return pairChart(m[1], m[2], hc)
}

// pairChart picks a chart for "Y against X": scatter when both are numeric,
// a mean bar chart over a category, a line over dates.
func pairChart(yPhrase, xPhrase string, hc *Context) (chartRequest, bool) {
	y, okY := resolvePhrase(yPhrase, hc.Summary)
	x, okX := resolvePhrase(xPhrase, hc.Summary)
	if !okX || !okY || x == y {
		return chartRequest{}, false
	}
	s := hc.Summary
	switch {
	case s.IsNumeric(x) && s.IsNumeric(y):
		return chartRequest{Type: chart.TypeScatter, X: x, Y: y, Aggregate: chart.AggregateNone}, true
	case !s.IsNumeric(y) && s.IsNumeric(x):
		x, y = y, x
	case !s.IsNumeric(y):
		return chartRequest{Type: chart.TypeBar, X: x, Y: y, Aggregate: chart.AggregateCount}, true
	}
	if s.IsDate(x) {
		return chartRequest{Type: chart.TypeLine, X: x, Y: y, Aggregate: chart.AggregateMean}, true
	}
	return chartRequest{Type: chart.TypeBar, X: x, Y: y, Aggregate: chart.AggregateMean}, true
}

// lastChart returns the last chart of the most recent assistant turn that has one.
func lastChart(history []chat.Message) *chart.Spec {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.IsAssistant() && len(m.Charts) > 0 {
			c := m.Charts[len(m.Charts)-1]
			return &c
		}
	}
	return nil
}

package chart

import (
	"fmt"
	"strings"

	"ai-insights-be/pkg/dataset"
)

type Type string

const (
	TypeLine    Type = "line"
	TypeBar     Type = "bar"
	TypeScatter Type = "scatter"
	TypePie     Type = "pie"
	TypeArea    Type = "area"
)

type Aggregate string

const (
	AggregateNone  Aggregate = "none"
	AggregateSum   Aggregate = "sum"
	AggregateMean  Aggregate = "mean"
	AggregateCount Aggregate = "count"
)

// Point is one shaped datum keyed by the chart's axis column names.
type Point map[string]interface{}

// Spec is a declarative chart description. Data is attached after shaping.
type Spec struct {
	Type               Type      `json:"type" validate:"required,oneof=line bar scatter pie area"`
	Title              string    `json:"title"`
	X                  string    `json:"x" validate:"required"`
	Y                  string    `json:"y" validate:"required"`
	Y2                 string    `json:"y2,omitempty"`
	Aggregate          Aggregate `json:"aggregate,omitempty" validate:"omitempty,oneof=none sum mean count"`
	Data               []Point   `json:"data,omitempty"`
	XDomain            []float64 `json:"xDomain,omitempty"`
	YDomain            []float64 `json:"yDomain,omitempty"`
	TrendLine          []Point   `json:"trendLine,omitempty"`
	KeyInsight         string    `json:"keyInsight,omitempty"`
	Recommendation     string    `json:"recommendation,omitempty"`
	IsCorrelationChart bool      `json:"_isCorrelationChart,omitempty"`
}

// Insight is a numbered narrative line within one response.
type Insight struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// NumberInsights assigns sequential ids starting at 1, skipping blank lines.
func NumberInsights(texts []string) []Insight {
	out := make([]Insight, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, Insight{ID: len(out) + 1, Text: t})
	}
	return out
}

// AppendInsights renumbers so ids stay sequential across merged lists.
func AppendInsights(base []Insight, more ...Insight) []Insight {
	out := make([]Insight, 0, len(base)+len(more))
	for _, in := range append(append([]Insight{}, base...), more...) {
		out = append(out, Insight{ID: len(out) + 1, Text: in.Text})
	}
	return out
}

// ValidateColumns checks that x, y and y2 name columns of the active dataset.
func (s Spec) ValidateColumns(summary dataset.Summary) error {
	if s.X == "" || s.Y == "" {
		return fmt.Errorf("chart %q is missing an axis", s.Title)
	}
	for _, col := range []string{s.X, s.Y, s.Y2} {
		if col == "" {
			continue
		}
		if !summary.HasColumn(col) {
			return fmt.Errorf("chart %q references unknown column %q", s.Title, col)
		}
	}
	return nil
}

// DefaultTitle builds "Y by X" style titles when none was given.
func (s Spec) DefaultTitle() string {
	switch {
	case s.Y2 != "":
		return fmt.Sprintf("%s and %s by %s", s.Y, s.Y2, s.X)
	case s.Type == TypeScatter:
		return fmt.Sprintf("%s vs %s", s.Y, s.X)
	default:
		return fmt.Sprintf("%s by %s", s.Y, s.X)
	}
}

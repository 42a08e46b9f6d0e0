package intent

import (
	"errors"
	"fmt"
	"math"
)

type Type string

const (
	TypeCorrelation    Type = "correlation"
	TypeChart          Type = "chart"
	TypeStatistical    Type = "statistical"
	TypeConversational Type = "conversational"
	TypeComparison     Type = "comparison"
	TypeCustom         Type = "custom"
	TypeDataOps        Type = "dataOps"
)

// AllTypes lists every intent variant. Dispatch tables are checked against it.
var AllTypes = []Type{
	TypeCorrelation,
	TypeChart,
	TypeStatistical,
	TypeConversational,
	TypeComparison,
	TypeCustom,
	TypeDataOps,
}

const (
	SignAll      = "all"
	SignPositive = "positive"
	SignNegative = "negative"
)

type Filters struct {
	CorrelationSign    string   `json:"correlationSign,omitempty" validate:"omitempty,oneof=all positive negative"`
	ExcludeVariables   []string `json:"excludeVariables,omitempty"`
	IncludeOnly        []string `json:"includeOnly,omitempty"`
	ExcludeNegativeFor []string `json:"excludeNegativeFor,omitempty"`
}

type AxisMapping struct {
	X  string `json:"x,omitempty"`
	Y  string `json:"y,omitempty"`
	Y2 string `json:"y2,omitempty"`
}

// Intent is the classified purpose of one question plus its extracted slots.
type Intent struct {
	Type                  Type         `json:"type" validate:"required,oneof=correlation chart statistical conversational comparison custom dataOps"`
	Confidence            float64      `json:"confidence"`
	TargetVariable        string       `json:"targetVariable,omitempty"`
	Variables             []string     `json:"variables,omitempty"`
	ChartType             string       `json:"chartType,omitempty" validate:"omitempty,oneof=line bar scatter pie area"`
	Filters               *Filters     `json:"filters,omitempty"`
	AxisMapping           *AxisMapping `json:"axisMapping,omitempty"`
	CustomRequest         string       `json:"customRequest,omitempty"`
	RequiresClarification bool         `json:"requiresClarification,omitempty"`
	OriginalQuestion      string       `json:"originalQuestion,omitempty"`

	// Heuristic is set when the keyword fallback produced this intent.
	Heuristic bool `json:"-"`
}

func (i Intent) IsConversational() bool {
	return i.Type == TypeConversational
}

// Sign returns the requested correlation sign, defaulting to all.
func (i Intent) Sign() string {
	if i.Filters == nil || i.Filters.CorrelationSign == "" {
		return SignAll
	}
	return i.Filters.CorrelationSign
}

var ErrConfidenceMissing = errors.New("confidence is required")

func checkConfidence(c *float64) error {
	if c == nil {
		return ErrConfidenceMissing
	}
	if math.IsNaN(*c) || math.IsInf(*c, 0) || *c < 0 || *c > 1 {
		return fmt.Errorf("confidence %v is outside [0,1]", *c)
	}
	return nil
}

// ClassificationError reports that every model attempt produced unusable output.
type ClassificationError struct {
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("intent classification failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

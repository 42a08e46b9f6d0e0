package router

import (
	"regexp"
)

// ReferenceType indicates what kind of referent a phrase points at
type ReferenceType string

const (
	ReferenceTypeChart         ReferenceType = "chart"         // "that chart", "the chart"
	ReferenceTypeDemonstrative ReferenceType = "demonstrative" // "that", "it"
	ReferenceTypePositional    ReferenceType = "positional"    // "the previous one", "the last one", "the above"
)

// ParsedReference is one referential phrase found in a question
type ParsedReference struct {
	Type        ReferenceType
	Phrase      string // canonical lowercase phrase
	OriginalRaw string // text as the user typed it
}

// ReferenceParseResult contains every referential phrase found in a question
type ReferenceParseResult struct {
	References []ParsedReference
	HasRefs    bool
}

type referencePattern struct {
	phrase  string
	refType ReferenceType
	re      *regexp.Regexp
}

func newPattern(phrase string, t ReferenceType) referencePattern {
	return referencePattern{
		phrase:  phrase,
		refType: t,
		re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`),
	}
}

// Detection set. Longer phrases come first so "that chart" is reported as a
// chart reference before its "that".
var referencePatterns = []referencePattern{
	newPattern("that chart", ReferenceTypeChart),
	newPattern("the chart", ReferenceTypeChart),
	newPattern("the previous one", ReferenceTypePositional),
	newPattern("the last one", ReferenceTypePositional),
	newPattern("the above", ReferenceTypePositional),
	newPattern("that", ReferenceTypeDemonstrative),
	newPattern("it", ReferenceTypeDemonstrative),
}

// ParseReferences lists the referential phrases present in a question.
func ParseReferences(question string) *ReferenceParseResult {
	result := &ReferenceParseResult{References: make([]ParsedReference, 0)}

	for _, p := range referencePatterns {
		for _, m := range p.re.FindAllString(question, -1) {
			result.References = append(result.References, ParsedReference{
				Type:        p.refType,
				Phrase:      p.phrase,
				OriginalRaw: m,
			})
		}
	}

	result.HasRefs = len(result.References) > 0
	return result
}

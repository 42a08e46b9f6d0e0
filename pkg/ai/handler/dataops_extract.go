package handler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
)

// opParams are the slots of one data operation, as extracted by the model
// or the regex fallback.
type opParams struct {
	Operation  string       `json:"operation"`
	Column     string       `json:"column,omitempty"`
	Columns    []string     `json:"columns,omitempty"`
	Filter     *filterParam `json:"filter,omitempty"`
	NewColumn  string       `json:"newColumn,omitempty"`
	Expression string       `json:"expression,omitempty"`
	TargetType string       `json:"targetType,omitempty"`
	Method     string       `json:"method,omitempty"`
	Value      interface{}  `json:"value,omitempty"`
	// HasValue is set once a value was given, so an explicit null counts.
	HasValue   bool         `json:"hasValue,omitempty"`
}

type filterParam struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

func (f *filterParam) condition(summary dataset.Summary) (dataset.Condition, bool) {
	if f == nil || f.Column == "" {
		return dataset.Condition{}, false
	}
	col, ok := column.Resolve(f.Column, summary.ColumnNames())
	if !ok {
		return dataset.Condition{}, false
	}
	op, ok := dataset.NormalizeOperator(f.Operator)
	if !ok {
		return dataset.Condition{}, false
	}
	return dataset.Condition{Column: col, Operator: op, Value: f.Value}, true
}

var (
	zScorePattern  = regexp.MustCompile(`(?i)z-?score|standardi[sz]e`)
	pronounRows    = regexp.MustCompile(`(?i)\b(those|these|them|the same)\b(\s+rows?)?`)
	// nullAssignment spots "to null" / "= empty" style values the model reports as null.
	nullAssignment = regexp.MustCompile(`(?i)(?:\bto|=)\s*["']?(?:null|empty|blank|nothing)\b`)

	conditionPattern = regexp.MustCompile(`(?i)^\s*(?:the\s+)?(.+?)\s+(>=|<=|!=|<>|==|=|>|<|is not|is|equals|equal to|greater than|more than|less than|at least|at most|above|below|over|under|contains|includes)\s+(.+?)\s*[?.!]*$`)
	conditionSymbol  = regexp.MustCompile(`^\s*(.+?)\s*(>=|<=|!=|<>|==|=|>|<)\s*(.+?)\s*[?.!]*$`)

	rowFilterTail = `\s+(?:where|with|that have|having|when|whose|in which)\s+(.+)$`
)

// dataOpRule maps one regex onto an operation and its slots.
type dataOpRule struct {
	Operation string
	Pattern   *regexp.Regexp
	Extract   func(m []string, question string, summary dataset.Summary) opParams
}

// dataOpRules is ordered so that column-level phrasing wins over row-level
// phrasing sharing the same verb.
var dataOpRules = []dataOpRule{
	{
		Operation: OpCountNulls,
		Pattern:   regexp.MustCompile(`(?i)\b(how many|count|number of)\b.*\b(nulls?|missing|empty|blanks?)\b`),
		Extract:   mentionedColumn(OpCountNulls),
	},
	{
		Operation: OpRemoveNulls,
		Pattern:   regexp.MustCompile(`(?i)\b(remove|drop|delete|clean|get rid of)\b.*\b(nulls?|missing|empty|blanks?)\b`),
		Extract:   mentionedColumn(OpRemoveNulls),
	},
	{
		Operation: OpRemoveDuplicates,
		Pattern:   regexp.MustCompile(`(?i)\b(remove|drop|delete|dedupe|de-duplicate|get rid of)\b.*\bduplicates?\b|\bdedupe\b`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			return opParams{Operation: OpRemoveDuplicates, Columns: column.Mentioned(q, s.ColumnNames())}
		},
	},
	{
		Operation: OpRemoveOutliers,
		Pattern:   regexp.MustCompile(`(?i)\b(remove|drop|delete|clean|filter out|get rid of)\b.*\boutliers?\b`),
		Extract:   mentionedColumn(OpRemoveOutliers),
	},
	{
		Operation: OpNormalize,
		Pattern:   regexp.MustCompile(`(?i)\b(normali[sz]e|standardi[sz]e|rescale|scale)\b`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			p := mentionedColumn(OpNormalize)(m, q, s)
			p.Method = "minmax"
			if zScorePattern.MatchString(q) {
				p.Method = "zscore"
			}
			return p
		},
	},
	{
		Operation: OpConvertType,
		Pattern:   regexp.MustCompile(`(?i)\b(?:convert|change|cast|turn)\s+(?:the\s+)?(?:column\s+)?(.+?)\s+(?:column\s+)?(?:to|into)\s+(?:an?\s+)?(numbers?|numeric|integers?|floats?|strings?|text|dates?)\b`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			return opParams{Operation: OpConvertType, Column: m[1], TargetType: canonicalType(m[2])}
		},
	},
	{
		Operation: OpDeriveColumn,
		Pattern:   regexp.MustCompile(`(?i)\b(?:create|add|derive|make|compute|calculate)\b.*?\bcolumn\s+(?:called\s+|named\s+)?["']?(.+?)["']?\s*(?:=|as|equal to|equals)\s+(.+?)\s*[.!]*$`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			return opParams{Operation: OpDeriveColumn, NewColumn: strings.TrimSpace(m[1]), Expression: m[2]}
		},
	},
	{
		Operation: OpAddColumn,
		Pattern:   regexp.MustCompile(`(?i)\badd\s+(?:a\s+)?(?:new\s+)?column(?:\s+(?:called|named))?\s*["']?([^"']+?)["']?(?:\s+with\s+(?:a\s+)?(?:default\s+)?(?:value\s+)?(?:of\s+)?["']?(.+?)["']?)?\s*[.!]*$`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			p := opParams{Operation: OpAddColumn, NewColumn: strings.TrimSpace(m[1])}
			if m[2] != "" {
				p.Value = literal(m[2])
				p.HasValue = true
			}
			return p
		},
	},
	{
		Operation: OpDeleteColumn,
		Pattern:   regexp.MustCompile(`(?i)\b(?:delete|drop|remove)\s+(?:the\s+)?(?:column\s+["']?(.+?)["']?|["']?(.+?)["']?\s+column)\s*[.!]*$`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			return opParams{Operation: OpDeleteColumn, Column: name}
		},
	},
	{
		Operation: OpUpdateColumn,
		Pattern:   regexp.MustCompile(`(?i)\b(?:set|update|change)\s+(?:the\s+)?(?:column\s+)?(.+?)\s+(?:to|=)\s+["']?(.+?)["']?(?:\s+(?:where|for|when|in)\s+(.+?))?\s*[.!]*$`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			p := opParams{Operation: OpUpdateColumn, Column: m[1], Value: literal(m[2]), HasValue: true}
			if m[3] != "" {
				p.Filter = parseCondition(m[3])
			}
			return p
		},
	},
	{
		Operation: OpDeleteRows,
		Pattern:   regexp.MustCompile(`(?i)\b(?:delete|remove|drop|exclude)\s+(?:all\s+)?(?:the\s+)?(?:those|these|them|the same|rows?|records?|entries)(?:\s+rows?)?(?:` + rowFilterTail + `)?`),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			p := opParams{Operation: OpDeleteRows}
			if m[1] != "" {
				p.Filter = parseCondition(m[1])
			}
			return p
		},
	},
	{
		Operation: OpPreviewRows,
		Pattern:   regexp.MustCompile(`(?i)\b(?:show|preview|list|find|display|which|how many)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?(?:rows?|records?|entries)` + rowFilterTail),
		Extract: func(m []string, q string, s dataset.Summary) opParams {
			return opParams{Operation: OpPreviewRows, Filter: parseCondition(m[1])}
		},
	},
}

func mentionedColumn(op string) func([]string, string, dataset.Summary) opParams {
	return func(_ []string, q string, s dataset.Summary) opParams {
		p := opParams{Operation: op}
		if cols := column.Mentioned(q, s.ColumnNames()); len(cols) > 0 {
			p.Column = cols[0]
		}
		return p
	}
}

// extractByRules is the offline fallback for parameter extraction.
func extractByRules(question string, summary dataset.Summary) (opParams, bool) {
	for _, r := range dataOpRules {
		if m := r.Pattern.FindStringSubmatch(question); m != nil {
			return r.Extract(m, question, summary), true
		}
	}
	return opParams{}, false
}

func parseCondition(text string) *filterParam {
	m := conditionSymbol.FindStringSubmatch(text)
	if m == nil {
		m = conditionPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return nil
	}
	return &filterParam{Column: strings.TrimSpace(m[1]), Operator: m[2], Value: literal(m[3])}
}

// literal turns reply text into a number when it parses as one.
func literal(s string) interface{} {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if f, ok := dataset.ToNumber(s); ok {
		return f
	}
	switch strings.ToLower(s) {
	case "null", "empty", "blank", "nothing":
		return nil
	}
	return s
}

func canonicalType(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "num"), strings.HasPrefix(s, "int"), strings.HasPrefix(s, "float"):
		return "number"
	case strings.HasPrefix(s, "date"):
		return "date"
	case strings.HasPrefix(s, "str"), s == "text":
		return "string"
	}
	return ""
}

func (h *DataOpsHandler) extractByModel(ctx context.Context, hc *Context) (opParams, error) {
	if h.llm == nil {
		return opParams{}, errors.New("no completer configured")
	}
	prompt, err := render(dataOpsTemplate, newPromptData(hc.Question, hc))
	if err != nil {
		return opParams{}, err
	}
	return llm.CompleteJSON(ctx, h.llm, llm.TaskIntent,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		func(p opParams) error {
			if !knownOperations[p.Operation] {
				return fmt.Errorf("unknown operation %q", p.Operation)
			}
			return nil
		},
		llm.WithTemperature(0.1),
	)
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/correlation"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/stats"
)

const NameCorrelation = "correlation"

var (
	// Target discovery patterns, tried in order against the question.
	targetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhat\s+(?:factors?\s+)?(?:affects?|drives?|impacts?|influences?|determines?|explains?)\s+(?:the\s+)?(.+?)\s*[?.!]*$`),
		regexp.MustCompile(`(?i)\b(?:correlations?|relationships?)\s+(?:of|for|with|to)\s+(?:the\s+)?(.+?)\s*[?.!]*$`),
		regexp.MustCompile(`(?i)\b(?:drivers?|predictors?|influences?)\s+of\s+(?:the\s+)?(.+?)\s*[?.!]*$`),
		regexp.MustCompile(`(?i)^(?:the\s+)?(.+?)\s+(?:depends?|correlat\w*|relates?)\b`),
	}
	negativeOverride = regexp.MustCompile(`(?i)\b(?:don'?t|do not|doesn'?t)\s+want\s+(?:any\s+)?negative\s+(?:impacts?|effects?|correlations?|influences?)\s+(?:from|of|for|by)\s+(.+?)\s*[?.!]*$`)
)

// CorrelationHandler resolves the target and candidate set, then delegates
// ranking, charts and narrative to the correlation engine.
type CorrelationHandler struct {
	engine *correlation.Engine
	logger logger.ILogger
}

var _ Handler = &CorrelationHandler{}

func NewCorrelationHandler(engine *correlation.Engine, log logger.ILogger) *CorrelationHandler {
	return &CorrelationHandler{engine: engine, logger: log}
}

func (h *CorrelationHandler) Name() string { return NameCorrelation }

func (h *CorrelationHandler) CanHandle(in intent.Intent) bool {
	return in.Type == intent.TypeCorrelation
}

func (h *CorrelationHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	if len(hc.Data) == 0 {
		return nil, ErrEmptyDataset
	}

	target, err := h.resolveTarget(in, hc)
	if err != nil {
		return nil, err
	}
	if !hc.Summary.IsNumeric(target) {
		return nil, &NonNumericTargetError{Column: target, NumericColumns: hc.Summary.NumericColumns}
	}

	candidates := correlationCandidates(in, hc, target)
	if len(candidates) == 0 {
		return nil, explain(ErrEmptyFilterResult, "There are no other numeric columns to correlate with %s.", target)
	}

	req := correlation.Request{
		Target:             target,
		Candidates:         candidates,
		Filter:             correlation.Filter(in.Sign()),
		ExcludeNegativeFor: excludeNegativeFor(in, hc),
	}
	res, err := h.engine.Analyze(ctx, hc.Data, hc.Summary, req)
	if errors.Is(err, correlation.ErrNoCandidates) {
		return nil, explain(ErrEmptyFilterResult, "No column has a %s correlation with %s.", signPhrase(req.Filter), target)
	}
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", target, err)
	}

	return &Response{
		Answer:   correlationAnswer(target, len(candidates), res.Correlations),
		Charts:   res.Charts,
		Insights: res.Insights,
		Degraded: res.Degraded,
	}, nil
}

// resolveTarget tries the classifier's target, then columns named in the
// question, then the discovery patterns.
func (h *CorrelationHandler) resolveTarget(in intent.Intent, hc *Context) (string, error) {
	columns := hc.Summary.ColumnNames()
	if in.TargetVariable != "" {
		if col, ok := column.Resolve(in.TargetVariable, columns); ok {
			return col, nil
		}
	}

	for _, p := range targetPatterns {
		m := p.FindStringSubmatch(hc.Question)
		if m == nil {
			continue
		}
		if col, ok := column.Resolve(strings.TrimSpace(m[1]), columns); ok {
			return col, nil
		}
		if named := column.Mentioned(m[1], columns); len(named) > 0 {
			return named[0], nil
		}
	}

	if col := firstNumeric(column.Mentioned(hc.Question, columns), hc.Summary); col != "" {
		return col, nil
	}
	return "", columnNotFound(in.TargetVariable, hc.Summary)
}

// correlationCandidates starts from every other numeric column, narrows to
// includeOnly or the intent's variables when given, then applies exclusions.
func correlationCandidates(in intent.Intent, hc *Context, target string) []string {
	columns := hc.Summary.ColumnNames()
	pool := otherNumeric(hc.Summary, target)

	var include []string
	if in.Filters != nil && len(in.Filters.IncludeOnly) > 0 {
		include = column.ResolveAll(in.Filters.IncludeOnly, columns)
	} else if len(in.Variables) > 0 {
		include = column.ResolveAll(in.Variables, columns)
	}
	if len(include) > 0 {
		if narrowed := intersect(pool, include); len(narrowed) > 0 {
			pool = narrowed
		}
	}

	if in.Filters != nil && len(in.Filters.ExcludeVariables) > 0 {
		pool = subtract(pool, column.ResolveAll(in.Filters.ExcludeVariables, columns))
	}
	return pool
}

// excludeNegativeFor merges the classifier's slot with an explicit
// "don't want negative impact from A and B" phrase.
func excludeNegativeFor(in intent.Intent, hc *Context) []string {
	columns := hc.Summary.ColumnNames()
	var names []string
	if in.Filters != nil {
		names = append(names, in.Filters.ExcludeNegativeFor...)
	}
	if m := negativeOverride.FindStringSubmatch(hc.Question); m != nil {
		names = append(names, listSplit.Split(m[1], -1)...)
	}
	return column.ResolveAll(names, columns)
}

func correlationAnswer(target string, analyzed int, ranked []stats.Correlation) string {
	top := ranked[0]
	answer := fmt.Sprintf("I compared %d column(s) against %s. The strongest relationship is %s with a %s %s correlation (r = %.2f).",
		analyzed, target, top.Variable, stats.Strength(top.R), stats.SignWord(top.R), top.R)
	if len(ranked) > 1 {
		next := make([]string, 0, 2)
		for _, c := range ranked[1:] {
			if len(next) == 2 {
				break
			}
			next = append(next, fmt.Sprintf("%s (r = %.2f)", c.Variable, c.R))
		}
		answer += " Next come " + strings.Join(next, " and ") + "."
	}
	return answer
}

func signPhrase(f correlation.Filter) string {
	switch f {
	case correlation.FilterPositive:
		return "positive"
	case correlation.FilterNegative:
		return "negative"
	}
	return "measurable"
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func subtract(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if !set[v] {
			out = append(out, v)
		}
	}
	return out
}

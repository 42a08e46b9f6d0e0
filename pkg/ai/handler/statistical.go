package handler

import (
	"context"
	"fmt"
	"regexp"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/stats"
)

const NameStatistical = "statistical"

var (
	highestPattern = regexp.MustCompile(`(?i)\b(highest|largest|biggest|most|max(imum)?|best|top|peak|greatest|strongest)\b`)
	lowestPattern  = regexp.MustCompile(`(?i)\b(lowest|smallest|least|min(imum)?|worst|bottom|fewest|weakest)\b`)
	periodName     = regexp.MustCompile(`(?i)\b(date|day|week|month|quarter|year|period|time)\b`)
)

type extreme int

const (
	noExtreme extreme = iota
	maxExtreme
	minExtreme
)

// StatisticalHandler answers aggregate and "which X had the highest Y" questions.
type StatisticalHandler struct {
	processor   *chart.Processor
	synthesizer *insight.Synthesizer
	logger      logger.ILogger
}

var _ Handler = &StatisticalHandler{}

func NewStatisticalHandler(processor *chart.Processor, synthesizer *insight.Synthesizer, log logger.ILogger) *StatisticalHandler {
	return &StatisticalHandler{processor: processor, synthesizer: synthesizer, logger: log}
}

func (h *StatisticalHandler) Name() string { return NameStatistical }

func (h *StatisticalHandler) CanHandle(in intent.Intent) bool {
	return in.Type == intent.TypeStatistical
}

func (h *StatisticalHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	if len(hc.Data) == 0 {
		return nil, ErrEmptyDataset
	}
	target, err := numericTarget(in, hc)
	if err != nil {
		return nil, err
	}

	switch wantedExtreme(hc.Question) {
	case maxExtreme:
		return h.extremal(ctx, hc, target, maxExtreme)
	case minExtreme:
		return h.extremal(ctx, hc, target, minExtreme)
	}
	return h.aggregate(hc, target)
}

func wantedExtreme(question string) extreme {
	hi := highestPattern.FindStringIndex(question)
	lo := lowestPattern.FindStringIndex(question)
	switch {
	case hi != nil && (lo == nil || hi[0] < lo[0]):
		return maxExtreme
	case lo != nil:
		return minExtreme
	}
	return noExtreme
}

// numericTarget resolves the intent's target, falling back to the first
// numeric column named in the question.
func numericTarget(in intent.Intent, hc *Context) (string, error) {
	columns := hc.Summary.ColumnNames()
	if in.TargetVariable != "" {
		col, ok := column.Resolve(in.TargetVariable, columns)
		if !ok {
			return "", columnNotFound(in.TargetVariable, hc.Summary)
		}
		if !hc.Summary.IsNumeric(col) {
			if alt := firstNumeric(column.Mentioned(hc.Question, columns), hc.Summary); alt != "" {
				return alt, nil
			}
			return "", &NonNumericTargetError{Column: col, NumericColumns: hc.Summary.NumericColumns}
		}
		return col, nil
	}
	if col := firstNumeric(column.Mentioned(hc.Question, columns), hc.Summary); col != "" {
		return col, nil
	}
	if col := firstNumeric(column.ResolveAll(in.Variables, columns), hc.Summary); col != "" {
		return col, nil
	}
	return "", columnNotFound("", hc.Summary)
}

func firstNumeric(cols []string, summary dataset.Summary) string {
	for _, c := range cols {
		if summary.IsNumeric(c) {
			return c
		}
	}
	return ""
}

// identifierColumn picks the column that names a row: one the question
// mentions, then a date column, then a period-like name, then the first text column.
func identifierColumn(hc *Context, target string) string {
	for _, c := range column.Mentioned(hc.Question, hc.Summary.ColumnNames()) {
		if c != target && !hc.Summary.IsNumeric(c) {
			return c
		}
	}
	if len(hc.Summary.DateColumns) > 0 {
		return hc.Summary.DateColumns[0]
	}
	nonNumeric := hc.Summary.NonNumericColumns()
	for _, c := range nonNumeric {
		if periodName.MatchString(c) {
			return c
		}
	}
	if len(nonNumeric) > 0 {
		return nonNumeric[0]
	}
	return ""
}

func (h *StatisticalHandler) extremal(ctx context.Context, hc *Context, target string, which extreme) (*Response, error) {
	best := -1
	var bestValue float64
	for i, r := range hc.Data {
		v, ok := dataset.ToNumber(r[target])
		if !ok {
			continue
		}
		if best < 0 || (which == maxExtreme && v > bestValue) || (which == minExtreme && v < bestValue) {
			best, bestValue = i, v
		}
	}
	if best < 0 {
		return nil, explain(ErrEmptyDataset, "%s has no numeric values to compare.", target)
	}

	word := "highest"
	if which == minExtreme {
		word = "lowest"
	}

	ident := identifierColumn(hc, target)
	var answer string
	if ident != "" {
		answer = fmt.Sprintf("%s had the %s %s at %s.", dataset.ToString(hc.Data[best][ident]), word, target, stats.FormatExact(bestValue))
	} else {
		answer = fmt.Sprintf("The %s %s is %s (row %d).", word, target, stats.FormatExact(bestValue), best+1)
	}

	resp := &Response{Answer: answer}
	if ident == "" {
		return resp, nil
	}

	spec := chart.Spec{Type: chart.TypeBar, X: ident, Y: target, Aggregate: chart.AggregateSum}
	if hc.Summary.IsDate(ident) {
		spec.Type = chart.TypeLine
	}
	spec.Title = spec.DefaultTitle()
	spec.Data = h.processor.Shape(hc.Data, spec)

	charts, degraded := h.synthesizer.Enrich(ctx, []chart.Spec{spec}, hc.Summary)
	resp.Charts = charts
	resp.Degraded = degraded
	return resp, nil
}

func (h *StatisticalHandler) aggregate(hc *Context, target string) (*Response, error) {
	d, ok := stats.Describe(dataset.NumericValues(hc.Data, target))
	if !ok {
		return nil, explain(ErrEmptyDataset, "%s has no numeric values to summarize.", target)
	}

	lines := []string{
		fmt.Sprintf("Count: %d", d.Count),
		fmt.Sprintf("Average: %s", stats.Format(d.Mean)),
		fmt.Sprintf("Median: %s", stats.Format(d.Median)),
		fmt.Sprintf("Minimum: %s", stats.FormatExact(d.Min)),
		fmt.Sprintf("Maximum: %s", stats.FormatExact(d.Max)),
		fmt.Sprintf("Sum: %s", stats.Format(d.Sum)),
	}
	answer := fmt.Sprintf("%s across %d values: average %s, median %s, ranging from %s to %s, total %s.",
		target, d.Count, stats.Format(d.Mean), stats.Format(d.Median), stats.FormatExact(d.Min), stats.FormatExact(d.Max), stats.Format(d.Sum))

	return &Response{Answer: answer, Insights: chart.NumberInsights(lines)}, nil
}

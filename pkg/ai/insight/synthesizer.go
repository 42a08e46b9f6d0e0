package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/stats"

	"golang.org/x/sync/errgroup"
)

const (
	MaxFieldLength = 220
	sampleRows     = 5
	enrichLimit    = 4

	NoDataInsight        = "No data is available for this chart."
	NoDataRecommendation = "Check the filters or upload data that covers these columns."
	fallbackAdvice       = "Review the extremes in this chart before acting on the trend."
)

var whitespace = regexp.MustCompile(`\s+`)

// Result is the narrative attached to a chart. Fallback is set when a template
// replaced the model's answer.
type Result struct {
	KeyInsight     string `json:"keyInsight"`
	Recommendation string `json:"recommendation"`
	Fallback       bool   `json:"-"`
}

type reply struct {
	KeyInsight     string `json:"keyInsight"`
	Recommendation string `json:"recommendation"`
}

// Synthesizer writes a key insight and recommendation for one chart.
type Synthesizer struct {
	llm    llm.Completer
	logger logger.ILogger
}

func NewSynthesizer(completer llm.Completer, log logger.ILogger) *Synthesizer {
	return &Synthesizer{llm: completer, logger: log}
}

// Synthesize never fails: upstream errors degrade to a templated summary.
func (s *Synthesizer) Synthesize(ctx context.Context, spec chart.Spec, data []chart.Point, summary dataset.Summary) Result {
	if len(data) == 0 {
		return Result{KeyInsight: NoDataInsight, Recommendation: NoDataRecommendation}
	}

	if s.isNumericPair(spec, summary) {
		if res, ok := correlationTemplate(spec, data); ok {
			return res
		}
	}

	res, err := s.ask(ctx, spec, data)
	if err != nil {
		s.logger.Warn("INSIGHT", "Falling back to templated insight", map[string]interface{}{
			"chart": spec.Title,
			"error": err.Error(),
		})
		return fallback(spec, data)
	}

	if spec.Y2 != "" {
		res.KeyInsight = ensureBothSeries(spec, data, res.KeyInsight)
	}
	return res
}

// Enrich fills KeyInsight/Recommendation on every chart concurrently and
// reports whether any of them used the template fallback.
func (s *Synthesizer) Enrich(ctx context.Context, specs []chart.Spec, summary dataset.Summary) ([]chart.Spec, bool) {
	out := make([]chart.Spec, len(specs))
	copy(out, specs)
	fellBack := make([]bool, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	for i := range out {
		i := i
		g.Go(func() error {
			res := s.Synthesize(gctx, out[i], out[i].Data, summary)
			out[i].KeyInsight = res.KeyInsight
			out[i].Recommendation = res.Recommendation
			fellBack[i] = res.Fallback
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range fellBack {
		if f {
			return out, true
		}
	}
	return out, false
}

func (s *Synthesizer) isNumericPair(spec chart.Spec, summary dataset.Summary) bool {
	return !spec.IsCorrelationChart &&
		spec.Y2 == "" &&
		summary.IsNumeric(spec.X) &&
		summary.IsNumeric(spec.Y)
}

// correlationTemplate answers numeric-vs-numeric charts locally from Pearson r.
func correlationTemplate(spec chart.Spec, data []chart.Point) (Result, bool) {
	xs, ys := pairs(data, spec.X, spec.Y)
	r, ok := stats.Pearson(xs, ys)
	if !ok {
		return Result{}, false
	}
	yd, _ := stats.Describe(ys)
	xd, _ := stats.Describe(xs)

	strength, direction := stats.Strength(r), stats.Direction(r)
	var key string
	if direction == "weak" {
		key = fmt.Sprintf("%s and %s show no clear relationship (r = %.2f) across %d points.", spec.X, spec.Y, r, len(xs))
	} else {
		key = fmt.Sprintf("%s has a %s %s relationship with %s (r = %.2f) across %d points.", spec.X, strength, direction, spec.Y, r, len(xs))
	}

	var rec string
	switch direction {
	case "positive":
		rec = fmt.Sprintf("Rows with %s above %s tend to push %s past its top-20%% mark of %s.",
			spec.X, stats.Format(xd.P75), spec.Y, stats.Format(yd.P80))
	case "negative":
		rec = fmt.Sprintf("Keeping %s below %s is associated with %s above its top-20%% mark of %s.",
			spec.X, stats.Format(xd.P25), spec.Y, stats.Format(yd.P80))
	default:
		rec = fmt.Sprintf("Look beyond %s to explain %s; its values above %s (p75) are not tied to %s.",
			spec.X, spec.Y, stats.Format(yd.P75), spec.X)
	}
	return Result{KeyInsight: truncate(squash(key)), Recommendation: truncate(squash(rec))}, true
}

func (s *Synthesizer) ask(ctx context.Context, spec chart.Spec, data []chart.Point) (Result, error) {
	if s.llm == nil {
		return Result{}, errors.New("no completer configured")
	}
	prompt, err := renderPrompt(buildPromptData(spec, data))
	if err != nil {
		return Result{}, err
	}

	out, err := llm.CompleteJSON(ctx, s.llm, llm.TaskGeneration,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		func(r reply) error {
			if strings.TrimSpace(r.KeyInsight) == "" {
				return errors.New("keyInsight is empty")
			}
			return nil
		},
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(300),
	)
	if err != nil {
		return Result{}, err
	}

	rec := truncate(squash(out.Recommendation))
	if rec == "" {
		rec = fallbackAdvice
	}
	return Result{KeyInsight: truncate(squash(out.KeyInsight)), Recommendation: rec}, nil
}

func buildPromptData(spec chart.Spec, data []chart.Point) promptData {
	pd := promptData{
		Spec: specView{
			Type: string(spec.Type), Title: spec.Title,
			X: spec.X, Y: spec.Y, Y2: spec.Y2, Aggregate: string(spec.Aggregate),
		},
		Points: len(data),
	}
	for _, col := range []string{spec.X, spec.Y, spec.Y2} {
		if col == "" {
			continue
		}
		if d, ok := stats.Describe(chart.Column(data, col)); ok {
			pd.Series = append(pd.Series, series{Name: col, Stats: d})
		}
	}
	if spec.IsCorrelationChart {
		pd.TopBand = topOutcomeBand(data, spec.X, spec.Y)
	}

	n := sampleRows
	if len(data) < n {
		n = len(data)
	}
	if raw, err := json.Marshal(data[:n]); err == nil {
		pd.Sample = string(raw)
	}
	return pd
}

// topOutcomeBand finds the x range of rows whose y reaches the 80th percentile.
func topOutcomeBand(data []chart.Point, xCol, yCol string) *topBand {
	xs, ys := pairs(data, xCol, yCol)
	yd, ok := stats.Describe(ys)
	if !ok {
		return nil
	}
	var band []float64
	for i := range ys {
		if ys[i] >= yd.P80 {
			band = append(band, xs[i])
		}
	}
	bd, ok := stats.Describe(band)
	if !ok {
		return nil
	}
	return &topBand{Threshold: yd.P80, Min: bd.Min, Max: bd.Max, Mean: bd.Mean}
}

// ensureBothSeries prepends a templated sentence for whichever series the
// narrative left out.
func ensureBothSeries(spec chart.Spec, data []chart.Point, text string) string {
	lower := strings.ToLower(text)
	hasY := strings.Contains(lower, strings.ToLower(spec.Y))
	hasY2 := strings.Contains(lower, strings.ToLower(spec.Y2))
	switch {
	case hasY && !hasY2:
		return seriesSentence(spec.Y2, data) + " " + text
	case hasY2 && !hasY:
		return seriesSentence(spec.Y, data) + " " + text
	case !hasY && !hasY2:
		return seriesSentence(spec.Y, data) + " " + seriesSentence(spec.Y2, data) + " " + text
	}
	return text
}

func seriesSentence(col string, data []chart.Point) string {
	d, ok := stats.Describe(chart.Column(data, col))
	if !ok {
		return fmt.Sprintf("%s has no numeric values in this view.", col)
	}
	return fmt.Sprintf("%s shows %d points ranging from %s to %s.", col, d.Count, stats.Format(d.Min), stats.Format(d.Max))
}

func fallback(spec chart.Spec, data []chart.Point) Result {
	key := seriesSentence(spec.Y, data)
	if spec.Y2 != "" {
		key += " " + seriesSentence(spec.Y2, data)
	}
	return Result{KeyInsight: key, Recommendation: fallbackAdvice, Fallback: true}
}

func pairs(data []chart.Point, xCol, yCol string) (xs, ys []float64) {
	for _, pt := range data {
		x, okx := dataset.ToNumber(pt[xCol])
		y, oky := dataset.ToNumber(pt[yCol])
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys
}

func squash(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxFieldLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:MaxFieldLength-1])) + "…"
}

package correlation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/stats"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterPositive Filter = "positive"
	FilterNegative Filter = "negative"
)

const (
	MaxRanked        = 12
	MaxScatterCharts = 3

	RankingVariable = "variable"
	RankingValue    = "correlation"

	causationCaveat = "Correlation does not imply causation."
)

// ErrNoCandidates is returned when no candidate yields a correlation after filtering.
var ErrNoCandidates = errors.New("no correlated columns remain after filtering")

var (
	positiveWord = regexp.MustCompile(`(?i)\bpositive(ly)?\b`)
	negativeWord = regexp.MustCompile(`(?i)\bnegative(ly)?\b|\binverse(ly)?\b`)
	causationRef = regexp.MustCompile(`(?i)causation|does not (imply|mean|prove) caus`)
)

type Request struct {
	Target     string
	Candidates []string
	Filter     Filter
	// ExcludeNegativeFor drops negative correlations only for the named
	// variables, leaving the rest of an "all" filter intact.
	ExcludeNegativeFor []string
}

type Result struct {
	Charts       []chart.Spec        `json:"charts"`
	Insights     []chart.Insight     `json:"insights"`
	Correlations []stats.Correlation `json:"correlations"`
	Degraded     bool                `json:"-"`
}

// Engine ranks candidate columns by Pearson correlation against a target and
// turns the ranking into charts plus a narrative.
type Engine struct {
	llm         llm.Completer
	synthesizer *insight.Synthesizer
	processor   *chart.Processor
	logger      logger.ILogger
}

func NewEngine(completer llm.Completer, synthesizer *insight.Synthesizer, processor *chart.Processor, log logger.ILogger) *Engine {
	return &Engine{llm: completer, synthesizer: synthesizer, processor: processor, logger: log}
}

func (e *Engine) Analyze(ctx context.Context, rows []dataset.Row, summary dataset.Summary, req Request) (*Result, error) {
	ranked := Rank(rows, req)
	if len(ranked) == 0 {
		return nil, ErrNoCandidates
	}

	e.logger.Info("CORRELATION", "Ranked candidates", map[string]interface{}{
		"target":     req.Target,
		"candidates": len(req.Candidates),
		"kept":       len(ranked),
		"filter":     string(req.Filter),
	})

	charts := e.buildCharts(rows, req.Target, ranked)
	charts, degraded := e.synthesizer.Enrich(ctx, charts, summary)

	texts, err := e.narrate(ctx, rows, req, ranked)
	if err != nil {
		e.logger.Warn("CORRELATION", "Narrative fell back to templates", map[string]interface{}{
			"target": req.Target,
			"error":  err.Error(),
		})
		texts = templatedInsights(req.Target, ranked)
		degraded = true
	}

	return &Result{
		Charts:       charts,
		Insights:     chart.NumberInsights(texts),
		Correlations: ranked,
		Degraded:     degraded,
	}, nil
}

// Rank computes, filters and orders correlations. Signs are never altered.
func Rank(rows []dataset.Row, req Request) []stats.Correlation {
	excluded := make(map[string]bool, len(req.ExcludeNegativeFor))
	for _, v := range req.ExcludeNegativeFor {
		excluded[strings.ToLower(v)] = true
	}

	var out []stats.Correlation
	seen := map[string]bool{}
	for _, cand := range req.Candidates {
		if cand == req.Target || seen[cand] {
			continue
		}
		seen[cand] = true

		c, ok := stats.Correlate(rows, req.Target, cand)
		if !ok {
			continue
		}
		switch req.Filter {
		case FilterPositive:
			if c.R <= 0 {
				continue
			}
		case FilterNegative:
			if c.R >= 0 {
				continue
			}
		}
		if c.R < 0 && excluded[strings.ToLower(cand)] {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].R) > math.Abs(out[j].R)
	})
	if len(out) > MaxRanked {
		out = out[:MaxRanked]
	}
	return out
}

func (e *Engine) buildCharts(rows []dataset.Row, target string, ranked []stats.Correlation) []chart.Spec {
	var charts []chart.Spec
	for i, c := range ranked {
		if i >= MaxScatterCharts {
			break
		}
		spec := chart.Spec{
			Type:               chart.TypeScatter,
			Title:              fmt.Sprintf("%s vs %s (r = %s)", target, c.Variable, formatR(c.R)),
			X:                  c.Variable,
			Y:                  target,
			Aggregate:          chart.AggregateNone,
			IsCorrelationChart: true,
		}
		spec.Data = e.processor.Shape(rows, spec)

		xs, ys := stats.Paired(rows, c.Variable, target)
		spec.XDomain = chart.PaddedDomain(xs)
		spec.YDomain = chart.PaddedDomain(ys)
		if reg := stats.LinearRegression(xs, ys); reg != nil {
			xd, _ := stats.Describe(xs)
			spec.TrendLine = []chart.Point{
				{c.Variable: xd.Min, target: reg.At(xd.Min)},
				{c.Variable: xd.Max, target: reg.At(xd.Max)},
			}
		}
		charts = append(charts, spec)
	}

	if len(ranked) > 1 {
		data := make([]chart.Point, len(ranked))
		for i, c := range ranked {
			data[i] = chart.Point{RankingVariable: c.Variable, RankingValue: c.R}
		}
		charts = append(charts, chart.Spec{
			Type:      chart.TypeBar,
			Title:     fmt.Sprintf("Correlation with %s", target),
			X:         RankingVariable,
			Y:         RankingValue,
			Aggregate: chart.AggregateNone,
			Data:      data,
		})
	}
	return charts
}

type narrativeReply struct {
	Insights []string `json:"insights"`
}

func (e *Engine) narrate(ctx context.Context, rows []dataset.Row, req Request, ranked []stats.Correlation) ([]string, error) {
	if e.llm == nil {
		return nil, errors.New("no completer configured")
	}
	prompt, err := renderNarrative(narrativeData{
		Target:     req.Target,
		FilterNote: filterNote(req),
		Factors:    factorViews(rows, req.Target, ranked),
	})
	if err != nil {
		return nil, err
	}

	out, err := llm.CompleteJSON(ctx, e.llm, llm.TaskGeneration,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		func(r narrativeReply) error {
			if len(r.Insights) == 0 {
				return errors.New("no insights returned")
			}
			return nil
		},
		llm.WithTemperature(0.4),
	)
	if err != nil {
		return nil, err
	}
	return Reconcile(req.Target, ranked, out.Insights), nil
}

// Reconcile enforces the narrative contract on model output: an insight that
// contradicts the sign of the single variable it mentions is replaced, every
// variable is mentioned at least once, and each line carries a causation caveat.
func Reconcile(target string, ranked []stats.Correlation, texts []string) []string {
	mentioned := map[string]bool{}
	var out []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		refs := mentions(text, ranked)
		if len(refs) == 1 && contradictsSign(text, refs[0].R) {
			text = templatedInsight(target, refs[0])
		}
		for _, c := range refs {
			mentioned[c.Variable] = true
		}
		out = append(out, withCaveat(text))
	}
	for _, c := range ranked {
		if !mentioned[c.Variable] {
			out = append(out, withCaveat(templatedInsight(target, c)))
		}
	}
	return out
}

func mentions(text string, ranked []stats.Correlation) []stats.Correlation {
	lower := strings.ToLower(text)
	var out []stats.Correlation
	for _, c := range ranked {
		if strings.Contains(lower, strings.ToLower(c.Variable)) {
			out = append(out, c)
		}
	}
	return out
}

func contradictsSign(text string, r float64) bool {
	pos := positiveWord.MatchString(text)
	neg := negativeWord.MatchString(text)
	if r < 0 {
		return pos && !neg
	}
	return neg && !pos
}

func withCaveat(text string) string {
	if causationRef.MatchString(text) {
		return text
	}
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text + " " + causationCaveat
}

func templatedInsight(target string, c stats.Correlation) string {
	return fmt.Sprintf("%s has a %s %s correlation with %s (r = %s, n = %d).",
		c.Variable, stats.Strength(c.R), stats.SignWord(c.R), target, formatR(c.R), c.N)
}

func templatedInsights(target string, ranked []stats.Correlation) []string {
	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = withCaveat(templatedInsight(target, c))
	}
	return out
}

func factorViews(rows []dataset.Row, target string, ranked []stats.Correlation) []factorView {
	targetStats, hasTarget := stats.Describe(dataset.NumericValues(rows, target))

	views := make([]factorView, 0, len(ranked))
	for _, c := range ranked {
		fv := factorView{
			Variable: c.Variable,
			R:        c.R,
			N:        c.N,
			Strength: stats.Strength(c.R),
			Sign:     stats.SignWord(c.R),
		}
		xs, ys := stats.Paired(rows, c.Variable, target)
		fv.Stats, _ = stats.Describe(xs)
		if hasTarget {
			var top []float64
			for i := range ys {
				if ys[i] >= targetStats.P90 {
					top = append(top, xs[i])
				}
			}
			if d, ok := stats.Describe(top); ok {
				fv.Optimal = &d
			}
		}
		views = append(views, fv)
	}
	return views
}

func filterNote(req Request) string {
	var note string
	switch req.Filter {
	case FilterPositive:
		note = "Only positive correlations were requested; every factor listed has r > 0."
	case FilterNegative:
		note = "Only negative correlations were requested; every factor listed has r < 0."
	default:
		note = "All correlations are shown regardless of sign."
	}
	if len(req.ExcludeNegativeFor) > 0 {
		note += fmt.Sprintf(" Negative correlations were removed for: %s.", strings.Join(req.ExcludeNegativeFor, ", "))
	}
	return note
}

func formatR(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

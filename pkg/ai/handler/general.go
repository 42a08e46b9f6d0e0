package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/stats"
)

const (
	NameGeneral = "general"

	maxGeneratedCharts = 4
)

// GeneralHandler is the catch-all. It tries the chart detector table, then
// the intent's axis mapping, then asks the model to interpret the question.
type GeneralHandler struct {
	llm         llm.Completer
	processor   *chart.Processor
	synthesizer *insight.Synthesizer
	logger      logger.ILogger
}

var _ Handler = &GeneralHandler{}

func NewGeneralHandler(completer llm.Completer, processor *chart.Processor, synthesizer *insight.Synthesizer, log logger.ILogger) *GeneralHandler {
	return &GeneralHandler{llm: completer, processor: processor, synthesizer: synthesizer, logger: log}
}

func (h *GeneralHandler) Name() string { return NameGeneral }

func (h *GeneralHandler) CanHandle(in intent.Intent) bool {
	return acceptsAny(in.Type, intent.TypeChart, intent.TypeStatistical, intent.TypeComparison, intent.TypeCustom)
}

func (h *GeneralHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	if len(hc.Data) == 0 {
		return nil, ErrEmptyDataset
	}

	if rule, req, ok := MatchChartRule(hc.Question, hc); ok {
		h.logger.Debug("HANDLER", "Chart rule matched", map[string]interface{}{
			"session_id": hc.SessionID,
			"rule":       rule,
		})
		return h.fromRequest(ctx, hc, req), nil
	}

	if req, ok := axisRequest(in, hc); ok {
		return h.fromRequest(ctx, hc, req), nil
	}

	return h.interpret(ctx, hc)
}

// axisRequest builds a chart from the classifier's axis mapping.
func axisRequest(in intent.Intent, hc *Context) (chartRequest, bool) {
	if in.AxisMapping == nil || in.AxisMapping.X == "" || in.AxisMapping.Y == "" {
		return chartRequest{}, false
	}
	columns := hc.Summary.ColumnNames()
	x, okX := column.Resolve(in.AxisMapping.X, columns)
	y, okY := column.Resolve(in.AxisMapping.Y, columns)
	if !okX || !okY {
		return chartRequest{}, false
	}
	req, ok := pairChart(y, x, hc)
	if !ok {
		return chartRequest{}, false
	}
	if in.AxisMapping.Y2 != "" {
		if y2, ok := column.Resolve(in.AxisMapping.Y2, columns); ok && hc.Summary.IsNumeric(y2) && y2 != req.Y {
			req.Y2 = y2
			req.Type = chart.TypeLine
		}
	}
	if in.ChartType != "" && req.Y2 == "" {
		t := chart.Type(in.ChartType)
		if t != chart.TypeScatter || (hc.Summary.IsNumeric(req.X) && hc.Summary.IsNumeric(req.Y)) {
			req.Type = t
		}
	}
	return req, true
}

func (h *GeneralHandler) fromRequest(ctx context.Context, hc *Context, req chartRequest) *Response {
	spec := chart.Spec{Type: req.Type, X: req.X, Y: req.Y, Y2: req.Y2, Aggregate: req.Aggregate, IsCorrelationChart: req.Correlation}
	if req.Base != nil && req.Base.Title != "" {
		spec.Title = fmt.Sprintf("%s with %s", req.Base.Title, req.Y2)
	} else {
		spec.Title = spec.DefaultTitle()
	}
	spec = h.shape(hc, spec)

	charts, degraded := h.synthesizer.Enrich(ctx, []chart.Spec{spec}, hc.Summary)
	spec = charts[0]

	answer := fmt.Sprintf("Here is %s.", spec.Title)
	if req.Correlation {
		if c, ok := stats.Correlate(hc.Data, req.Y, req.X); ok {
			answer = fmt.Sprintf("%s and %s have a %s %s correlation (r = %.2f, n = %d).",
				req.X, req.Y, stats.Strength(c.R), stats.SignWord(c.R), c.R, c.N)
		}
	}
	if spec.KeyInsight != "" {
		answer += " " + spec.KeyInsight
	}
	return &Response{Answer: answer, Charts: charts, Degraded: degraded}
}

// shape attaches data, and domains plus a trend line for scatter charts.
func (h *GeneralHandler) shape(hc *Context, spec chart.Spec) chart.Spec {
	spec.Data = h.processor.Shape(hc.Data, spec)
	if spec.Type != chart.TypeScatter {
		return spec
	}
	xs, ys := stats.Paired(hc.Data, spec.X, spec.Y)
	spec.XDomain = chart.PaddedDomain(xs)
	spec.YDomain = chart.PaddedDomain(ys)
	if spec.IsCorrelationChart {
		if reg := stats.LinearRegression(xs, ys); reg != nil {
			xd, _ := stats.Describe(xs)
			spec.TrendLine = []chart.Point{
				{spec.X: xd.Min, spec.Y: reg.At(xd.Min)},
				{spec.X: xd.Max, spec.Y: reg.At(xd.Max)},
			}
		}
	}
	return spec
}

type generalReply struct {
	Answer   string       `json:"answer"`
	Charts   []chart.Spec `json:"charts"`
	Insights []string     `json:"insights"`
}

func (h *GeneralHandler) interpret(ctx context.Context, hc *Context) (*Response, error) {
	if h.llm == nil {
		return nil, errors.New("no completer configured")
	}
	prompt, err := render(generalTemplate, newPromptData(hc.Question, hc))
	if err != nil {
		return nil, err
	}

	out, err := llm.CompleteJSON(ctx, h.llm, llm.TaskGeneration,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		func(r generalReply) error {
			if strings.TrimSpace(r.Answer) == "" {
				return errors.New("answer is empty")
			}
			return nil
		},
		llm.WithTemperature(0.5),
	)
	if err != nil {
		return nil, fmt.Errorf("interpret question: %w", err)
	}

	specs := h.realize(hc, out.Charts)
	charts, degraded := h.synthesizer.Enrich(ctx, specs, hc.Summary)
	return &Response{
		Answer:   strings.TrimSpace(out.Answer),
		Charts:   charts,
		Insights: chart.NumberInsights(out.Insights),
		Degraded: degraded,
	}, nil
}

// realize maps model-proposed specs onto real columns, drops the ones that
// still reference unknown columns, and shapes the rest.
func (h *GeneralHandler) realize(hc *Context, proposed []chart.Spec) []chart.Spec {
	columns := hc.Summary.ColumnNames()
	var out []chart.Spec
	for _, spec := range proposed {
		if len(out) == maxGeneratedCharts {
			break
		}
		if x, ok := column.Resolve(spec.X, columns); ok {
			spec.X = x
		}
		if y, ok := column.Resolve(spec.Y, columns); ok {
			spec.Y = y
		}
		if spec.Y2 != "" {
			if y2, ok := column.Resolve(spec.Y2, columns); ok {
				spec.Y2 = y2
			}
		}
		if err := spec.ValidateColumns(hc.Summary); err != nil {
			h.logger.Debug("HANDLER", "Dropped proposed chart", map[string]interface{}{
				"session_id": hc.SessionID,
				"error":      err.Error(),
			})
			continue
		}
		switch spec.Type {
		case chart.TypeLine, chart.TypeBar, chart.TypePie, chart.TypeArea:
		case chart.TypeScatter:
			if !hc.Summary.IsNumeric(spec.X) || !hc.Summary.IsNumeric(spec.Y) {
				spec.Type = chart.TypeBar
				spec.Aggregate = chart.AggregateMean
			}
		default:
			spec.Type = chart.TypeBar
		}
		if spec.Title == "" {
			spec.Title = spec.DefaultTitle()
		}
		spec.KeyInsight, spec.Recommendation = "", ""
		out = append(out, h.shape(hc, spec))
	}
	return out
}

package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numericSummary(cols ...string) dataset.Summary {
	s := dataset.Summary{NumericColumns: cols}
	for _, c := range cols {
		s.Columns = append(s.Columns, dataset.ColumnSummary{Name: c, Type: dataset.TypeNumber})
	}
	return s
}

func linearPoints() []chart.Point {
	var pts []chart.Point
	for i := 1; i <= 10; i++ {
		pts = append(pts, chart.Point{"Spend": float64(i), "Revenue": float64(i * 10), "Cost": float64(i * 3)})
	}
	return pts
}

func TestSynthesize_EmptyDataSkipsModel(t *testing.T) {
	c := llmtest.NewScripted()
	s := NewSynthesizer(c, logger.NewNop())

	res := s.Synthesize(context.Background(), chart.Spec{Type: chart.TypeBar, X: "Region", Y: "Revenue"}, nil, dataset.Summary{})

	assert.Equal(t, NoDataInsight, res.KeyInsight)
	assert.Equal(t, NoDataRecommendation, res.Recommendation)
	assert.Equal(t, 0, c.CallCount())
}

func TestSynthesize_NumericPairBypassesModel(t *testing.T) {
	c := llmtest.NewScripted()
	s := NewSynthesizer(c, logger.NewNop())
	spec := chart.Spec{Type: chart.TypeScatter, X: "Spend", Y: "Revenue"}

	res := s.Synthesize(context.Background(), spec, linearPoints(), numericSummary("Spend", "Revenue"))

	assert.Equal(t, 0, c.CallCount())
	assert.Contains(t, res.KeyInsight, "strong positive")
	assert.Contains(t, res.KeyInsight, "r = 1.00")
	assert.Contains(t, res.Recommendation, "Revenue")
	assert.False(t, res.Fallback)
}

func TestSynthesize_CorrelationChartUsesModel(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{"keyInsight":"Spend   tracks\nRevenue closely.","recommendation":"Keep Spend above 7."}`))
	s := NewSynthesizer(c, logger.NewNop())
	spec := chart.Spec{Type: chart.TypeScatter, X: "Spend", Y: "Revenue", IsCorrelationChart: true}

	res := s.Synthesize(context.Background(), spec, linearPoints(), numericSummary("Spend", "Revenue"))

	require.Equal(t, 1, c.CallCount())
	assert.Equal(t, "Spend tracks Revenue closely.", res.KeyInsight)
	assert.Equal(t, "Keep Spend above 7.", res.Recommendation)
	assert.Contains(t, c.Calls[0].Messages[0].Content, "top 20% of Revenue")
}

func TestSynthesize_DualAxisInjectsMissingSeries(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{"keyInsight":"Revenue climbs every month.","recommendation":"Plan capacity."}`))
	s := NewSynthesizer(c, logger.NewNop())
	spec := chart.Spec{Type: chart.TypeLine, X: "Spend", Y: "Revenue", Y2: "Cost"}

	res := s.Synthesize(context.Background(), spec, linearPoints(), numericSummary("Spend", "Revenue", "Cost"))

	assert.Contains(t, res.KeyInsight, "Revenue")
	assert.Contains(t, res.KeyInsight, "Cost")
	assert.True(t, strings.HasPrefix(res.KeyInsight, "Cost shows 10 points"))
}

func TestSynthesize_ModelErrorFallsBack(t *testing.T) {
	s := NewSynthesizer(llmtest.Failing(errors.New("timeout")), logger.NewNop())
	spec := chart.Spec{Type: chart.TypeLine, X: "Month", Y: "Revenue", Y2: "Cost"}

	res := s.Synthesize(context.Background(), spec, linearPoints(), numericSummary("Revenue", "Cost"))

	assert.True(t, res.Fallback)
	assert.Contains(t, res.KeyInsight, "Revenue shows 10 points ranging from 10 to 100.")
	assert.Contains(t, res.KeyInsight, "Cost shows 10 points ranging from 3 to 30.")
}

func TestSynthesize_TruncatesLongFields(t *testing.T) {
	long := strings.Repeat("word ", 100)
	c := llmtest.NewScripted(llmtest.Text(`{"keyInsight":"` + long + `","recommendation":"ok"}`))
	s := NewSynthesizer(c, logger.NewNop())

	res := s.Synthesize(context.Background(), chart.Spec{Type: chart.TypeBar, X: "Region", Y: "Revenue"},
		[]chart.Point{{"Region": "North", "Revenue": 10.0}}, numericSummary("Revenue"))

	assert.LessOrEqual(t, len([]rune(res.KeyInsight)), MaxFieldLength)
	assert.True(t, strings.HasSuffix(res.KeyInsight, "…"))
}

func TestEnrich_FillsEveryChart(t *testing.T) {
	s := NewSynthesizer(llmtest.Failing(errors.New("down")), logger.NewNop())
	specs := []chart.Spec{
		{Type: chart.TypeBar, X: "Region", Y: "Revenue", Data: []chart.Point{{"Region": "N", "Revenue": 5.0}}},
		{Type: chart.TypeBar, X: "Region", Y: "Cost"},
	}

	out, degraded := s.Enrich(context.Background(), specs, numericSummary("Revenue", "Cost"))

	require.Len(t, out, 2)
	assert.True(t, degraded)
	assert.Contains(t, out[0].KeyInsight, "ranging from 5 to 5")
	assert.Equal(t, NoDataInsight, out[1].KeyInsight)
}

package chart

import (
	"testing"

	"ai-insights-be/pkg/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows() []dataset.Row {
	return []dataset.Row{
		{"Month": "2024-03-01", "Revenue": 30.0, "Cost": 10.0, "Region": "North"},
		{"Month": "2024-01-01", "Revenue": 10.0, "Cost": 5.0, "Region": "South"},
		{"Month": "2024-02-01", "Revenue": 20.0, "Cost": nil, "Region": "North"},
		{"Month": "2024-02-01", "Revenue": 40.0, "Cost": 7.0, "Region": "East"},
	}
}

func TestShape_BarMeanSortedDescending(t *testing.T) {
	p := NewProcessor()
	data := p.Shape(rows(), Spec{Type: TypeBar, X: "Region", Y: "Revenue", Aggregate: AggregateMean})

	require.Len(t, data, 3)
	assert.Equal(t, "East", data[0]["Region"])
	assert.Equal(t, 40.0, data[0]["Revenue"])
	assert.Equal(t, "North", data[1]["Region"])
	assert.Equal(t, 25.0, data[1]["Revenue"])
}

func TestShape_LineSortsDatesAndAggregates(t *testing.T) {
	p := NewProcessor()
	data := p.Shape(rows(), Spec{Type: TypeLine, X: "Month", Y: "Revenue", Y2: "Cost"})

	require.Len(t, data, 3)
	assert.Equal(t, "2024-01-01", data[0]["Month"])
	assert.Equal(t, "2024-02-01", data[1]["Month"])
	assert.Equal(t, 30.0, data[1]["Revenue"])
	assert.Equal(t, 7.0, data[1]["Cost"])
}

func TestShape_ScatterDropsIncompletePairs(t *testing.T) {
	p := NewProcessor()
	data := p.Shape(rows(), Spec{Type: TypeScatter, X: "Cost", Y: "Revenue"})
	assert.Len(t, data, 3)
}

func TestShape_SamplesLongSeries(t *testing.T) {
	p := NewProcessor()
	p.MaxScatterPoints = 10
	var many []dataset.Row
	for i := 0; i < 100; i++ {
		many = append(many, dataset.Row{"x": float64(i), "y": float64(i)})
	}
	data := p.Shape(many, Spec{Type: TypeScatter, X: "x", Y: "y"})
	require.Len(t, data, 10)
	assert.Equal(t, 0.0, data[0]["x"])
	assert.Equal(t, 99.0, data[9]["x"])
}

func TestValidateColumns(t *testing.T) {
	summary := dataset.Summarize(rows(), []string{"Month", "Revenue", "Cost", "Region"})

	assert.NoError(t, Spec{Type: TypeLine, X: "Month", Y: "Revenue", Y2: "Cost"}.ValidateColumns(summary))
	assert.Error(t, Spec{Type: TypeLine, X: "Month", Y: "Profit"}.ValidateColumns(summary))
}

func TestNumberInsights(t *testing.T) {
	got := NumberInsights([]string{"first", " ", "second"})
	assert.Equal(t, []Insight{{ID: 1, Text: "first"}, {ID: 2, Text: "second"}}, got)

	merged := AppendInsights(got, Insight{ID: 9, Text: "third"})
	assert.Equal(t, 3, merged[2].ID)
}

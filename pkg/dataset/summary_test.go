package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{"Month": "2024-01-01", "Revenue": 100.0, "Region": "North"},
		{"Month": "2024-02-01", "Revenue": "1,250", "Region": "South"},
		{"Month": "2024-03-01", "Revenue": nil, "Region": "North"},
		{"Month": "2024-04-01", "Revenue": 300.5, "Region": ""},
	}
}

func TestSummarize_InfersTypes(t *testing.T) {
	s := Summarize(sampleRows(), []string{"Month", "Revenue", "Region"})

	assert.Equal(t, 4, s.RowCount)
	assert.Equal(t, 3, s.ColumnCount)
	assert.Equal(t, []string{"Revenue"}, s.NumericColumns)
	assert.Equal(t, []string{"Month"}, s.DateColumns)

	region, ok := s.Column("Region")
	require.True(t, ok)
	assert.Equal(t, TypeString, region.Type)
	assert.Len(t, region.SampleValues, 3)
	assert.NoError(t, s.Validate())
}

func TestSummarize_DefaultsToSortedColumns(t *testing.T) {
	s := Summarize([]Row{{"b": 1.0, "a": "x"}}, nil)
	assert.Equal(t, []string{"a", "b"}, s.ColumnNames())
}

func TestSummary_ValidateRejectsUnknownNumericColumn(t *testing.T) {
	s := Summary{
		Columns:        []ColumnSummary{{Name: "A", Type: TypeNumber}},
		NumericColumns: []string{"A", "B"},
	}
	assert.Error(t, s.Validate())
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{"1,234.5", 1234.5, true},
		{"$99", 99, true},
		{"45%", 45, true},
		{"abc", 0, false},
		{nil, 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9)
		}
	}
}

func TestFilter(t *testing.T) {
	rows := sampleRows()

	north := Filter(rows, []Condition{{Column: "Region", Operator: OpEq, Value: "north"}})
	assert.Len(t, north, 2)

	big := Filter(rows, []Condition{{Column: "Revenue", Operator: OpGt, Value: "200"}})
	assert.Len(t, big, 2)

	missing := Filter(rows, []Condition{{Column: "Revenue", Operator: OpEq, Value: "null"}})
	assert.Len(t, missing, 1)

	op, ok := NormalizeOperator("greater than")
	assert.True(t, ok)
	assert.Equal(t, OpGt, op)
}

package dataset

import (
	"fmt"
	"strings"
)

type ColumnType string

const (
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
	TypeString ColumnType = "string"
)

const (
	sampleSize         = 5
	inferenceThreshold = 0.8
)

type ColumnSummary struct {
	Name         string        `json:"name"`
	Type         ColumnType    `json:"type"`
	SampleValues []interface{} `json:"sampleValues"`
}

// Summary is the read-only schema description every pipeline stage works from.
type Summary struct {
	RowCount       int             `json:"rowCount"`
	ColumnCount    int             `json:"columnCount"`
	Columns        []ColumnSummary `json:"columns"`
	NumericColumns []string        `json:"numericColumns"`
	DateColumns    []string        `json:"dateColumns"`
}

func (s Summary) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s Summary) Column(name string) (ColumnSummary, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

func (s Summary) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

func (s Summary) IsNumeric(name string) bool {
	return contains(s.NumericColumns, name)
}

func (s Summary) IsDate(name string) bool {
	return contains(s.DateColumns, name)
}

// NonNumericColumns keeps column order.
func (s Summary) NonNumericColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if !s.IsNumeric(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

// Validate checks that every numeric/date column is also a declared column.
func (s Summary) Validate() error {
	for _, n := range s.NumericColumns {
		if !s.HasColumn(n) {
			return fmt.Errorf("numeric column %q is not a dataset column", n)
		}
	}
	for _, d := range s.DateColumns {
		if !s.HasColumn(d) {
			return fmt.Errorf("date column %q is not a dataset column", d)
		}
	}
	return nil
}

// Describe renders a short plain-text shape description.
func (s Summary) Describe() []string {
	lines := []string{
		fmt.Sprintf("Dataset has %d rows and %d columns.", s.RowCount, s.ColumnCount),
		fmt.Sprintf("Columns: %s.", strings.Join(s.ColumnNames(), ", ")),
	}
	if len(s.NumericColumns) > 0 {
		lines = append(lines, fmt.Sprintf("Numeric columns: %s.", strings.Join(s.NumericColumns, ", ")))
	} else {
		lines = append(lines, "Numeric columns: none.")
	}
	return lines
}

// Summarize infers column types from the rows. A column is numeric (or date)
// when at least 80% of its non-empty cells parse as such.
func Summarize(rows []Row, columns []string) Summary {
	if len(columns) == 0 {
		columns = ColumnOrder(rows)
	}

	summary := Summary{
		RowCount:       len(rows),
		ColumnCount:    len(columns),
		Columns:        make([]ColumnSummary, 0, len(columns)),
		NumericColumns: []string{},
		DateColumns:    []string{},
	}

	for _, col := range columns {
		var nonEmpty, numeric, dates int
		samples := make([]interface{}, 0, sampleSize)

		for _, r := range rows {
			v := r[col]
			if IsEmpty(v) {
				continue
			}
			nonEmpty++
			if _, ok := ToNumber(v); ok {
				numeric++
			} else if _, ok := ParseDate(v); ok {
				dates++
			}
			if len(samples) < sampleSize {
				samples = append(samples, v)
			}
		}

		colType := TypeString
		if nonEmpty > 0 {
			switch {
			case float64(numeric)/float64(nonEmpty) >= inferenceThreshold:
				colType = TypeNumber
			case float64(dates)/float64(nonEmpty) >= inferenceThreshold:
				colType = TypeDate
			}
		}

		summary.Columns = append(summary.Columns, ColumnSummary{Name: col, Type: colType, SampleValues: samples})
		switch colType {
		case TypeNumber:
			summary.NumericColumns = append(summary.NumericColumns, col)
		case TypeDate:
			summary.DateColumns = append(summary.DateColumns, col)
		}
	}

	return summary
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

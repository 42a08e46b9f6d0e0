package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row maps a column name to a scalar cell: string, float64 or nil.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows copies every row so callers can mutate the result freely.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// ColumnOrder collects every column name seen across rows, sorted.
// Used when the original header order is unknown (e.g. rows decoded from JSON objects).
func ColumnOrder(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// FillMissing makes the column set uniform by inserting nil for absent cells.
func FillMissing(rows []Row, columns []string) {
	for _, r := range rows {
		for _, c := range columns {
			if _, ok := r[c]; !ok {
				r[c] = nil
			}
		}
	}
}

// IsEmpty reports whether a cell counts as missing.
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") || strings.EqualFold(s, "n/a")
	case float64:
		return math.IsNaN(t)
	}
	return false
}

// ToNumber coerces a cell to a finite float64.
// Strings tolerate thousands separators, currency symbols and a trailing percent sign.
func ToNumber(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(s)
		s = strings.TrimSuffix(s, "%")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToString renders a cell for display and keying.
func ToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2006",
	"January 2006",
	"2006-01",
	"Jan 2, 2006",
}

// ParseDate tries the supported layouts in order.
func ParseDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NumericValues returns the parseable values of a column, skipping missing cells.
func NumericValues(rows []Row, column string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := ToNumber(r[column]); ok {
			out = append(out, f)
		}
	}
	return out
}

package handler

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/stats"
)

const (
	OpRemoveNulls      = "remove_nulls"
	OpCountNulls       = "count_nulls"
	OpConvertType      = "convert_type"
	OpDeleteRows       = "delete_rows"
	OpDeleteColumn     = "delete_column"
	OpAddColumn        = "add_column"
	OpUpdateColumn     = "update_column"
	OpDeriveColumn     = "derive_column"
	OpRemoveOutliers   = "remove_outliers"
	OpRemoveDuplicates = "remove_duplicates"
	OpNormalize        = "normalize"
	OpPreviewRows      = "preview_rows"
)

const (
	outlierIQRFactor = 1.5
	previewRowCount  = 5
	dateOutputLayout = "2006-01-02"
)

var knownOperations = map[string]bool{
	OpRemoveNulls: true, OpCountNulls: true, OpConvertType: true, OpDeleteRows: true,
	OpDeleteColumn: true, OpAddColumn: true, OpUpdateColumn: true, OpDeriveColumn: true,
	OpRemoveOutliers: true, OpRemoveDuplicates: true, OpNormalize: true, OpPreviewRows: true,
}

// readOnlyOperations never produce a dataset version.
var readOnlyOperations = map[string]bool{OpCountNulls: true, OpPreviewRows: true}

var expressionPattern = regexp.MustCompile(`^\s*(.+?)\s*([-+*/×÷]|\sx\s)\s*(.+?)\s*$`)

// opResult is the outcome of applying one operation to a copy of the rows.
type opResult struct {
	Rows    []dataset.Row
	Columns []string
	Message string
	Mutated bool
	Preview []dataset.Row
	Matched int
}

func removeNulls(rows []dataset.Row, columns []string, col string) opResult {
	check := columns
	if col != "" {
		check = []string{col}
	}
	out := make([]dataset.Row, 0, len(rows))
	for _, r := range rows {
		keep := true
		for _, c := range check {
			if dataset.IsEmpty(r[c]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	removed := len(rows) - len(out)
	scope := "any column"
	if col != "" {
		scope = col
	}
	return opResult{
		Rows:    out,
		Columns: columns,
		Mutated: removed > 0,
		Message: fmt.Sprintf("Removed %d row(s) with missing values in %s. %d row(s) remain.", removed, scope, len(out)),
	}
}

func countNulls(rows []dataset.Row, columns []string, col string) opResult {
	check := columns
	if col != "" {
		check = []string{col}
	}
	var parts []string
	total := 0
	for _, c := range check {
		n := 0
		for _, r := range rows {
			if dataset.IsEmpty(r[c]) {
				n++
			}
		}
		total += n
		if n > 0 || col != "" {
			parts = append(parts, fmt.Sprintf("%s: %d", c, n))
		}
	}
	msg := fmt.Sprintf("Found %d missing value(s)", total)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return opResult{Rows: rows, Columns: columns, Message: msg + "."}
}

func convertType(rows []dataset.Row, columns []string, col, target string) opResult {
	failed := 0
	for _, r := range rows {
		v := r[col]
		if dataset.IsEmpty(v) {
			continue
		}
		switch target {
		case "number":
			if f, ok := dataset.ToNumber(v); ok {
				r[col] = f
			} else {
				r[col] = nil
				failed++
			}
		case "date":
			if t, ok := dataset.ParseDate(v); ok {
				r[col] = t.Format(dateOutputLayout)
			} else {
				r[col] = nil
				failed++
			}
		default:
			r[col] = dataset.ToString(v)
		}
	}
	msg := fmt.Sprintf("Converted %s to %s.", col, target)
	if failed > 0 {
		msg += fmt.Sprintf(" %d value(s) could not be converted and were cleared.", failed)
	}
	return opResult{Rows: rows, Columns: columns, Mutated: true, Message: msg}
}

func deleteRows(rows []dataset.Row, columns []string, conds []dataset.Condition) opResult {
	out := make([]dataset.Row, 0, len(rows))
	for _, r := range rows {
		if !dataset.MatchAll(r, conds) {
			out = append(out, r)
		}
	}
	removed := len(rows) - len(out)
	return opResult{
		Rows:    out,
		Columns: columns,
		Mutated: removed > 0,
		Matched: removed,
		Message: fmt.Sprintf("Deleted %d row(s) where %s. %d row(s) remain.", removed, dataset.DescribeConditions(conds), len(out)),
	}
}

func deleteColumn(rows []dataset.Row, columns []string, col string) opResult {
	for _, r := range rows {
		delete(r, col)
	}
	return opResult{
		Rows:    rows,
		Columns: without(columns, col),
		Mutated: true,
		Message: fmt.Sprintf("Deleted column %s.", col),
	}
}

func addColumn(rows []dataset.Row, columns []string, name string, value interface{}) opResult {
	for _, r := range rows {
		r[name] = value
	}
	msg := fmt.Sprintf("Added column %s.", name)
	if value != nil {
		msg = fmt.Sprintf("Added column %s with default value %s.", name, dataset.ToString(value))
	}
	return opResult{Rows: rows, Columns: append(columns, name), Mutated: true, Message: msg}
}

func updateColumn(rows []dataset.Row, columns []string, col string, value interface{}, conds []dataset.Condition) opResult {
	n := 0
	for _, r := range rows {
		if dataset.MatchAll(r, conds) {
			r[col] = value
			n++
		}
	}
	scope := "every row"
	if len(conds) > 0 {
		scope = "rows where " + dataset.DescribeConditions(conds)
	}
	return opResult{
		Rows:    rows,
		Columns: columns,
		Mutated: n > 0,
		Matched: n,
		Message: fmt.Sprintf("Set %s to %s in %d row(s) (%s).", col, displayValue(value), n, scope),
	}
}

func displayValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	return dataset.ToString(v)
}

// operand is a column reference or a numeric literal.
type operand struct {
	column  string
	literal float64
}

func (o operand) value(r dataset.Row) (float64, bool) {
	if o.column == "" {
		return o.literal, true
	}
	return dataset.ToNumber(r[o.column])
}

// parseExpression reads "a op b" where each side is a column or a number.
func parseExpression(expr string, resolve func(string) (string, bool)) (operand, string, operand, error) {
	m := expressionPattern.FindStringSubmatch(expr)
	if m == nil {
		return operand{}, "", operand{}, fmt.Errorf("expression %q is not of the form a op b", expr)
	}
	side := func(s string) (operand, error) {
		if f, ok := dataset.ToNumber(s); ok {
			return operand{literal: f}, nil
		}
		if col, ok := resolve(s); ok {
			return operand{column: col}, nil
		}
		return operand{}, fmt.Errorf("unknown column %q", s)
	}
	left, err := side(m[1])
	if err != nil {
		return operand{}, "", operand{}, err
	}
	right, err := side(m[3])
	if err != nil {
		return operand{}, "", operand{}, err
	}
	op := strings.TrimSpace(m[2])
	switch op {
	case "×", "x":
		op = "*"
	case "÷":
		op = "/"
	}
	return left, op, right, nil
}

func deriveColumn(rows []dataset.Row, columns []string, name string, left operand, op string, right operand) opResult {
	skipped := 0
	for _, r := range rows {
		a, okA := left.value(r)
		b, okB := right.value(r)
		if !okA || !okB || (op == "/" && b == 0) {
			r[name] = nil
			skipped++
			continue
		}
		var v float64
		switch op {
		case "+":
			v = a + b
		case "-":
			v = a - b
		case "*":
			v = a * b
		case "/":
			v = a / b
		}
		if !isFinite(v) {
			r[name] = nil
			skipped++
			continue
		}
		r[name] = v
	}
	if !contains(columns, name) {
		columns = append(columns, name)
	}
	msg := fmt.Sprintf("Created column %s.", name)
	if skipped > 0 {
		msg += fmt.Sprintf(" %d row(s) were left empty because an input was missing or a division by zero occurred.", skipped)
	}
	return opResult{Rows: rows, Columns: columns, Mutated: true, Message: msg}
}

// removeOutliers drops rows whose value lies outside 1.5 IQR of the quartiles.
// Rows without a numeric value are kept.
func removeOutliers(rows []dataset.Row, columns []string, col string) opResult {
	d, ok := stats.Describe(dataset.NumericValues(rows, col))
	if !ok {
		return opResult{Rows: rows, Columns: columns, Message: fmt.Sprintf("%s has no numeric values, so no outliers were removed.", col)}
	}
	iqr := d.P75 - d.P25
	lo, hi := d.P25-outlierIQRFactor*iqr, d.P75+outlierIQRFactor*iqr

	out := make([]dataset.Row, 0, len(rows))
	for _, r := range rows {
		if v, ok := dataset.ToNumber(r[col]); ok && (v < lo || v > hi) {
			continue
		}
		out = append(out, r)
	}
	removed := len(rows) - len(out)
	return opResult{
		Rows:    out,
		Columns: columns,
		Mutated: removed > 0,
		Message: fmt.Sprintf("Removed %d outlier row(s) from %s outside [%s, %s].", removed, col, stats.Format(lo), stats.Format(hi)),
	}
}

func removeDuplicates(rows []dataset.Row, columns []string, keys []string) opResult {
	if len(keys) == 0 {
		keys = columns
	}
	seen := make(map[string]bool, len(rows))
	out := make([]dataset.Row, 0, len(rows))
	for _, r := range rows {
		vals := make([]interface{}, len(keys))
		for i, k := range keys {
			vals[i] = r[k]
		}
		raw, _ := json.Marshal(vals)
		if seen[string(raw)] {
			continue
		}
		seen[string(raw)] = true
		out = append(out, r)
	}
	removed := len(rows) - len(out)
	return opResult{
		Rows:    out,
		Columns: columns,
		Mutated: removed > 0,
		Message: fmt.Sprintf("Removed %d duplicate row(s). %d row(s) remain.", removed, len(out)),
	}
}

func normalize(rows []dataset.Row, columns []string, col, method string) opResult {
	d, ok := stats.Describe(dataset.NumericValues(rows, col))
	if !ok {
		return opResult{Rows: rows, Columns: columns, Message: fmt.Sprintf("%s has no numeric values to normalize.", col)}
	}
	for _, r := range rows {
		v, ok := dataset.ToNumber(r[col])
		if !ok {
			continue
		}
		switch method {
		case "zscore":
			if d.StdDev == 0 {
				r[col] = 0.0
			} else {
				r[col] = (v - d.Mean) / d.StdDev
			}
		default:
			if d.Max == d.Min {
				r[col] = 0.0
			} else {
				r[col] = (v - d.Min) / (d.Max - d.Min)
			}
		}
	}
	label := "min-max scaling"
	if method == "zscore" {
		label = "z-scores"
	}
	return opResult{Rows: rows, Columns: columns, Mutated: true, Message: fmt.Sprintf("Normalized %s using %s.", col, label)}
}

func previewRows(rows []dataset.Row, columns []string, conds []dataset.Condition) opResult {
	matched := dataset.Filter(rows, conds)
	preview := matched
	if len(preview) > previewRowCount {
		preview = preview[:previewRowCount]
	}
	return opResult{
		Rows:    rows,
		Columns: columns,
		Preview: preview,
		Matched: len(matched),
		Message: fmt.Sprintf("%d row(s) match %s.", len(matched), dataset.DescribeConditions(conds)),
	}
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

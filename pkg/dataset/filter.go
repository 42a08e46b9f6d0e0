package dataset

import (
	"fmt"
	"strings"
)

const (
	OpEq       = "="
	OpNeq      = "!="
	OpGt       = ">"
	OpGte      = ">="
	OpLt       = "<"
	OpLte      = "<="
	OpContains = "contains"
)

// Condition is a single row predicate. Conditions in a slice are AND-ed.
type Condition struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Column, c.Operator, ToString(c.Value))
}

// NormalizeOperator maps spoken and symbolic variants onto the canonical set.
func NormalizeOperator(op string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "=", "==", "is", "equals", "equal to", "eq":
		return OpEq, true
	case "!=", "<>", "is not", "not equal to", "ne":
		return OpNeq, true
	case ">", "greater than", "more than", "above", "gt", "over":
		return OpGt, true
	case ">=", "at least", "gte":
		return OpGte, true
	case "<", "less than", "below", "under", "lt":
		return OpLt, true
	case "<=", "at most", "lte":
		return OpLte, true
	case "contains", "includes", "like":
		return OpContains, true
	}
	return "", false
}

// Matches evaluates the condition. Numeric comparison is used when both
// sides parse as numbers, otherwise a case-insensitive string comparison.
func (c Condition) Matches(r Row) bool {
	cell := r[c.Column]

	if c.Operator == OpContains {
		return strings.Contains(strings.ToLower(ToString(cell)), strings.ToLower(ToString(c.Value)))
	}

	if isNullLiteral(c.Value) {
		switch c.Operator {
		case OpEq:
			return IsEmpty(cell)
		case OpNeq:
			return !IsEmpty(cell)
		}
		return false
	}

	lf, lok := ToNumber(cell)
	rf, rok := ToNumber(c.Value)
	if lok && rok {
		switch c.Operator {
		case OpEq:
			return lf == rf
		case OpNeq:
			return lf != rf
		case OpGt:
			return lf > rf
		case OpGte:
			return lf >= rf
		case OpLt:
			return lf < rf
		case OpLte:
			return lf <= rf
		}
		return false
	}

	ls := strings.ToLower(strings.TrimSpace(ToString(cell)))
	rs := strings.ToLower(strings.TrimSpace(ToString(c.Value)))
	switch c.Operator {
	case OpEq:
		return ls == rs
	case OpNeq:
		return ls != rs
	case OpGt:
		return ls > rs
	case OpGte:
		return ls >= rs
	case OpLt:
		return ls < rs
	case OpLte:
		return ls <= rs
	}
	return false
}

func isNullLiteral(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "null" || s == "empty" || s == "missing" || s == "blank"
}

// MatchAll reports whether the row satisfies every condition.
func MatchAll(r Row, conds []Condition) bool {
	for _, c := range conds {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

// Filter returns the rows matching every condition, preserving order.
func Filter(rows []Row, conds []Condition) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if MatchAll(r, conds) {
			out = append(out, r)
		}
	}
	return out
}

func DescribeConditions(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " and ")
}

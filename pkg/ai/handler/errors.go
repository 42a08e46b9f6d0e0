package handler

import (
	"errors"
	"fmt"
	"strings"

	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/dataset"
)

const maxSuggestions = 5

var (
	ErrEmptyDataset      = errors.New("dataset has no rows")
	ErrEmptyFilterResult = errors.New("filter removed every candidate")
)

// ColumnNotFoundError is returned when a named variable resolves to no column.
type ColumnNotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Name)
}

func columnNotFound(name string, summary dataset.Summary) *ColumnNotFoundError {
	return &ColumnNotFoundError{Name: name, Suggestions: column.Suggest(name, summary.ColumnNames(), maxSuggestions)}
}

// NonNumericTargetError is returned when numeric analysis targets a text or date column.
type NonNumericTargetError struct {
	Column         string
	NumericColumns []string
}

func (e *NonNumericTargetError) Error() string {
	return fmt.Sprintf("column %q is not numeric", e.Column)
}

// ExplainedError carries a user-facing explanation for an expected dead end.
type ExplainedError struct {
	Explanation string
	Err         error
}

func (e *ExplainedError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Explanation)
}

func (e *ExplainedError) Unwrap() error {
	return e.Err
}

func explain(err error, format string, args ...interface{}) error {
	return &ExplainedError{Explanation: fmt.Sprintf(format, args...), Err: err}
}

// DescribeError turns a domain error into a conversational answer. ok is
// false for unexpected errors, which should go through recovery instead.
func DescribeError(err error, summary dataset.Summary) (resp *Response, ok bool) {
	var notFound *ColumnNotFoundError
	var nonNumeric *NonNumericTargetError
	var explained *ExplainedError

	switch {
	case errors.As(err, &notFound):
		suggestions := notFound.Suggestions
		if len(suggestions) == 0 {
			suggestions = firstN(summary.ColumnNames(), maxSuggestions)
		}
		answer := "Which column should I analyze?"
		if notFound.Name != "" {
			answer = fmt.Sprintf("I couldn't find a column called %q.", notFound.Name)
		}
		if len(suggestions) > 0 {
			answer += fmt.Sprintf(" Did you mean one of: %s?", strings.Join(suggestions, ", "))
		}
		return &Response{Answer: answer, RequiresClarification: true, Suggestions: suggestions}, true

	case errors.As(err, &nonNumeric):
		answer := fmt.Sprintf("%s isn't a numeric column, so I can't run that analysis on it.", nonNumeric.Column)
		if len(nonNumeric.NumericColumns) > 0 {
			answer += fmt.Sprintf(" Numeric columns you can use: %s.", strings.Join(nonNumeric.NumericColumns, ", "))
		} else {
			answer += " This dataset has no numeric columns."
		}
		return &Response{Answer: answer, RequiresClarification: true, Suggestions: nonNumeric.NumericColumns}, true

	case errors.As(err, &explained):
		return &Response{Answer: explained.Explanation}, true

	case errors.Is(err, ErrEmptyDataset):
		return &Response{Answer: "The dataset has no rows yet, so there is nothing to analyze. Upload data and ask again."}, true

	case errors.Is(err, ErrEmptyFilterResult):
		return &Response{Answer: "Nothing was left to compare after applying your filters. Try relaxing them."}, true
	}
	return nil, false
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

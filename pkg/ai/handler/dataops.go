package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/column"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/store"
)

const NameDataOps = "dataOps"

// Slots that can be missing from an operation.
const (
	slotColumn     = "column"
	slotFilter     = "filter"
	slotNewColumn  = "newColumn"
	slotExpression = "expression"
	slotTargetType = "targetType"
	slotValue      = "value"
)

var targetTypeReply = regexp.MustCompile(`(?i)\b(numbers?|numeric|integers?|floats?|strings?|text|dates?)\b`)

// VersionPersister stores a mutated dataset as a new version.
type VersionPersister interface {
	PersistVersion(ctx context.Context, sessionID string, rows []dataset.Row, columns []string, operation string) (*DatasetVersion, error)
}

// DataOpsHandler runs cleaning and reshaping operations on the session's
// dataset. Parameters come from the model first and regex rules second.
type DataOpsHandler struct {
	llm       llm.Completer
	store     store.DataOpsStore
	persister VersionPersister
	now       func() time.Time
	logger    logger.ILogger
}

var (
	_ Handler = &DataOpsHandler{}
	_ Resumer = &DataOpsHandler{}
)

func NewDataOpsHandler(completer llm.Completer, contextStore store.DataOpsStore, persister VersionPersister, log logger.ILogger) *DataOpsHandler {
	return &DataOpsHandler{llm: completer, store: contextStore, persister: persister, now: time.Now, logger: log}
}

func (h *DataOpsHandler) Name() string { return NameDataOps }

func (h *DataOpsHandler) CanHandle(in intent.Intent) bool {
	return in.Type == intent.TypeDataOps
}

// Resumes reports whether a parked operation is waiting for this session.
func (h *DataOpsHandler) Resumes(ctx context.Context, sessionID string) bool {
	op, err := h.store.Pending(ctx, sessionID)
	return err == nil && op != nil && h.now().Sub(op.CreatedAt) < store.PendingOperationTTL
}

func (h *DataOpsHandler) Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error) {
	params, resumed, err := h.params(ctx, hc)
	if err != nil {
		return nil, err
	}
	if params.Operation == "" {
		return &Response{
			Answer:                "I couldn't tell which data operation you want. You can remove nulls or duplicates, delete rows or columns, add, update, convert or derive columns, remove outliers, normalize a column, or preview rows matching a filter.",
			RequiresClarification: true,
			Suggestions: []string{
				"Remove rows with missing values",
				"Show rows where Revenue > 1000",
				"Delete column Notes",
				"Create a column Profit = Revenue - Cost",
			},
		}, nil
	}

	if len(hc.Data) == 0 && params.Operation != OpAddColumn {
		return nil, ErrEmptyDataset
	}

	if !params.HasValue && (params.Value != nil || nullAssignment.MatchString(hc.Question)) {
		params.HasValue = true
	}

	conds, err := h.conditions(ctx, hc, params)
	if errors.Is(err, errNoLastFilter) {
		return h.park(ctx, hc, params, slotFilter, rowsQuestion)
	}
	if err != nil {
		return nil, err
	}

	if missing, question := missingSlot(params, conds, hc.Summary); missing != "" {
		return h.park(ctx, hc, params, missing, question)
	}
	if resumed {
		if err := h.store.ClearPending(ctx, hc.SessionID); err != nil {
			h.logger.Warn("DATAOPS", "Could not clear pending operation", map[string]interface{}{
				"session_id": hc.SessionID,
				"error":      err.Error(),
			})
		}
	}

	res, err := apply(params, conds, hc)
	if err != nil {
		return nil, err
	}
	h.logger.Info("DATAOPS", "Operation applied", map[string]interface{}{
		"session_id": hc.SessionID,
		"operation":  params.Operation,
		"mutated":    res.Mutated,
		"rows":       len(res.Rows),
	})

	resp := &Response{Answer: res.Message}
	switch params.Operation {
	case OpPreviewRows:
		h.rememberFilter(ctx, hc.SessionID, conds, res.Matched)
		resp.Answer += previewText(res.Preview, res.Columns, res.Matched)
	case OpDeleteRows:
		if err := h.store.Clear(ctx, hc.SessionID); err != nil {
			h.logger.Warn("DATAOPS", "Could not clear data operation context", map[string]interface{}{
				"session_id": hc.SessionID,
				"error":      err.Error(),
			})
		}
	}

	if !res.Mutated || readOnlyOperations[params.Operation] || h.persister == nil {
		return resp, nil
	}

	version, err := h.persister.PersistVersion(ctx, hc.SessionID, res.Rows, res.Columns, describeOperation(params, conds))
	if err != nil {
		return nil, fmt.Errorf("persist dataset version: %w", err)
	}
	resp.Dataset = version
	resp.Answer += fmt.Sprintf(" Saved as version %d.", version.Version)
	return resp, nil
}

// params resumes a parked operation when one is waiting, else extracts a new one.
func (h *DataOpsHandler) params(ctx context.Context, hc *Context) (opParams, bool, error) {
	pending, err := h.store.Pending(ctx, hc.SessionID)
	if err != nil {
		h.logger.Warn("DATAOPS", "Could not read pending operation", map[string]interface{}{
			"session_id": hc.SessionID,
			"error":      err.Error(),
		})
	}
	if pending != nil && h.now().Sub(pending.CreatedAt) < store.PendingOperationTTL {
		// A fresh full instruction replaces the parked one.
		if fresh, ok := extractByRules(hc.Question, hc.Summary); !ok || fresh.Operation == pending.Operation && fresh.Column == "" {
			var p opParams
			if err := json.Unmarshal(pending.Params, &p); err == nil {
				fill(&p, pending.Missing, hc.Question, hc.Summary)
				return p, true, nil
			}
		}
	}

	p, err := h.extractByModel(ctx, hc)
	if err != nil {
		h.logger.Debug("DATAOPS", "Model extraction failed, using rules", map[string]interface{}{
			"session_id": hc.SessionID,
			"error":      err.Error(),
		})
		p, _ = extractByRules(hc.Question, hc.Summary)
	}
	return p, false, nil
}

// fill writes the user's reply into the slot that was asked about.
func fill(p *opParams, slot, reply string, summary dataset.Summary) {
	reply = strings.TrimSpace(strings.TrimRight(reply, "?.!"))
	columns := summary.ColumnNames()
	switch slot {
	case slotColumn:
		if col, ok := column.Resolve(reply, columns); ok {
			p.Column = col
		} else if named := column.Mentioned(reply, columns); len(named) > 0 {
			p.Column = named[0]
		}
	case slotFilter:
		p.Filter = parseCondition(reply)
	case slotNewColumn:
		p.NewColumn = strings.Trim(reply, `"'`)
	case slotExpression:
		p.Expression = reply
	case slotTargetType:
		if m := targetTypeReply.FindString(reply); m != "" {
			p.TargetType = canonicalType(m)
		}
	case slotValue:
		p.Value = literal(reply)
		p.HasValue = true
	}
}

// errNoLastFilter reports a "those rows" reference with no live previewed filter.
var errNoLastFilter = errors.New("no previous filter to refer to")

const rowsQuestion = "Which rows do you mean? Give me a condition such as \"Region = North\" or \"Revenue > 1000\"."

// conditions resolves the operation's filter, reusing the last previewed
// filter for "those rows" style references.
func (h *DataOpsHandler) conditions(ctx context.Context, hc *Context, p opParams) ([]dataset.Condition, error) {
	if cond, ok := p.Filter.condition(hc.Summary); ok {
		return []dataset.Condition{cond}, nil
	}
	if p.Operation != OpDeleteRows && p.Operation != OpUpdateColumn {
		return nil, nil
	}
	if !pronounRows.MatchString(hc.Question) {
		return nil, nil
	}
	last, err := h.store.LastFilter(ctx, hc.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load last filter: %w", err)
	}
	if last == nil || h.now().Sub(last.CreatedAt) >= store.LastFilterTTL {
		return nil, errNoLastFilter
	}
	return last.Conditions, nil
}

func (h *DataOpsHandler) rememberFilter(ctx context.Context, sessionID string, conds []dataset.Condition, matched int) {
	err := h.store.SaveLastFilter(ctx, sessionID, store.FilterContext{
		Conditions:  conds,
		Description: dataset.DescribeConditions(conds),
		MatchCount:  matched,
		CreatedAt:   h.now(),
	})
	if err != nil {
		h.logger.Warn("DATAOPS", "Could not save last filter", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func (h *DataOpsHandler) park(ctx context.Context, hc *Context, p opParams, missing, question string) (*Response, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	err = h.store.SavePending(ctx, hc.SessionID, store.PendingOperation{
		Operation: p.Operation,
		Params:    raw,
		Missing:   missing,
		Question:  question,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.logger.Warn("DATAOPS", "Could not park operation", map[string]interface{}{
			"session_id": hc.SessionID,
			"error":      err.Error(),
		})
	}
	return &Response{Answer: question, RequiresClarification: true}, nil
}

// missingSlot names the first required slot that is still empty and the
// question to ask for it.
func missingSlot(p opParams, conds []dataset.Condition, summary dataset.Summary) (string, string) {
	columns := summary.ColumnNames()
	resolved := func(name string) bool {
		_, ok := column.Resolve(name, columns)
		return ok
	}
	numeric := strings.Join(summary.NumericColumns, ", ")

	switch p.Operation {
	case OpConvertType:
		if !resolved(p.Column) {
			return slotColumn, "Which column should I convert?"
		}
		if p.TargetType == "" {
			return slotTargetType, fmt.Sprintf("What type should %s become: number, string or date?", p.Column)
		}
	case OpDeleteColumn:
		if !resolved(p.Column) {
			return slotColumn, fmt.Sprintf("Which column should I delete? Columns: %s.", strings.Join(columns, ", "))
		}
	case OpRemoveOutliers, OpNormalize:
		if !resolved(p.Column) {
			return slotColumn, fmt.Sprintf("Which numeric column should I use? Numeric columns: %s.", numeric)
		}
	case OpDeleteRows, OpPreviewRows:
		if len(conds) == 0 {
			return slotFilter, rowsQuestion
		}
	case OpAddColumn:
		if strings.TrimSpace(p.NewColumn) == "" {
			return slotNewColumn, "What should the new column be called?"
		}
	case OpUpdateColumn:
		if !resolved(p.Column) {
			return slotColumn, "Which column should I update?"
		}
		if !p.HasValue {
			return slotValue, fmt.Sprintf("What value should %s be set to?", p.Column)
		}
	case OpDeriveColumn:
		if strings.TrimSpace(p.NewColumn) == "" {
			return slotNewColumn, "What should the new column be called?"
		}
		if strings.TrimSpace(p.Expression) == "" {
			return slotExpression, fmt.Sprintf("How should %s be calculated? For example \"Revenue - Cost\".", p.NewColumn)
		}
	}
	return "", ""
}

// apply runs the operation on a copy of the session rows.
func apply(p opParams, conds []dataset.Condition, hc *Context) (opResult, error) {
	columns := hc.Summary.ColumnNames()
	rows := dataset.CloneRows(hc.Data)
	resolve := func(name string) (string, bool) { return column.Resolve(name, columns) }

	col := ""
	if p.Column != "" && !strings.EqualFold(p.Column, "all") && !strings.EqualFold(p.Column, "any") {
		c, ok := resolve(p.Column)
		if !ok {
			return opResult{}, columnNotFound(p.Column, hc.Summary)
		}
		col = c
	}

	switch p.Operation {
	case OpRemoveNulls:
		return removeNulls(rows, columns, col), nil
	case OpCountNulls:
		return countNulls(rows, columns, col), nil
	case OpConvertType:
		return convertType(rows, columns, col, p.TargetType), nil
	case OpDeleteRows:
		return deleteRows(rows, columns, conds), nil
	case OpDeleteColumn:
		return deleteColumn(rows, columns, col), nil
	case OpAddColumn:
		name := strings.TrimSpace(p.NewColumn)
		if contains(columns, name) {
			return opResult{}, explain(fmt.Errorf("column %q exists", name), "A column named %s already exists.", name)
		}
		return addColumn(rows, columns, name, p.Value), nil
	case OpUpdateColumn:
		return updateColumn(rows, columns, col, p.Value, conds), nil
	case OpDeriveColumn:
		left, op, right, err := parseExpression(p.Expression, resolve)
		if err != nil {
			return opResult{}, explain(err, "I couldn't read the formula %q. Use two columns or numbers joined by +, -, * or /.", p.Expression)
		}
		return deriveColumn(rows, columns, strings.TrimSpace(p.NewColumn), left, op, right), nil
	case OpRemoveOutliers:
		if !hc.Summary.IsNumeric(col) {
			return opResult{}, &NonNumericTargetError{Column: col, NumericColumns: hc.Summary.NumericColumns}
		}
		return removeOutliers(rows, columns, col), nil
	case OpRemoveDuplicates:
		return removeDuplicates(rows, columns, column.ResolveAll(p.Columns, columns)), nil
	case OpNormalize:
		if !hc.Summary.IsNumeric(col) {
			return opResult{}, &NonNumericTargetError{Column: col, NumericColumns: hc.Summary.NumericColumns}
		}
		return normalize(rows, columns, col, p.Method), nil
	case OpPreviewRows:
		return previewRows(rows, columns, conds), nil
	}
	return opResult{}, fmt.Errorf("unsupported operation %q", p.Operation)
}

func describeOperation(p opParams, conds []dataset.Condition) string {
	parts := []string{p.Operation}
	if p.Column != "" {
		parts = append(parts, p.Column)
	}
	if p.NewColumn != "" {
		parts = append(parts, p.NewColumn)
	}
	if len(conds) > 0 {
		parts = append(parts, "where "+dataset.DescribeConditions(conds))
	}
	return strings.Join(parts, " ")
}

func previewText(rows []dataset.Row, columns []string, matched int) string {
	if len(rows) == 0 {
		return ""
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		cells := make([]string, 0, len(columns))
		for _, c := range columns {
			cells = append(cells, fmt.Sprintf("%s=%s", c, dataset.ToString(r[c])))
		}
		lines[i] = "- " + strings.Join(cells, ", ")
	}
	text := "\n" + strings.Join(lines, "\n")
	if matched > len(rows) {
		text += fmt.Sprintf("\n(showing %d of %d)", len(rows), matched)
	}
	return text
}

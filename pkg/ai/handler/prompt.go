package handler

import (
	"strings"
	"text/template"

	"ai-insights-be/pkg/chat"
)

const (
	promptHistoryTurns  = 6
	promptHistoryMaxLen = 500
)

var funcs = template.FuncMap{"join": strings.Join}

var conversationalTemplate = template.Must(template.New("conversational").Funcs(funcs).Parse(`<task>
You are a friendly data assistant chatting with a user about their uploaded dataset. Reply to their message in one or two short sentences.
</task>

<dataset>
{{.RowCount}} rows. Columns: {{join .Columns ", "}}
</dataset>
{{if .History}}
<history>
{{range .History}}{{.Role}}: {{.Content}}
{{end}}</history>
{{end}}
<rules>
- Be warm and brief.
- If it fits, suggest one question they could ask about the data.
- Do not invent numbers.
</rules>

<message>
{{.Question}}
</message>`))

var generalTemplate = template.Must(template.New("general").Funcs(funcs).Parse(`<task>
You are a data analyst. Interpret the user's question about their dataset, answer it, and propose charts when a chart would help.
</task>

<dataset>
Columns: {{join .Columns ", "}}
Numeric columns: {{join .Numeric ", "}}
Date columns: {{join .Dates ", "}}
</dataset>

<context>
{{range .Chunks}}- {{.}}
{{end}}</context>
{{if .PastQueries}}
<past_questions>
{{range .PastQueries}}{{.}}
{{end}}</past_questions>
{{end}}
<rules>
- Only use column names exactly as listed.
- Chart types: line, bar, scatter, pie, area. Aggregates: sum, mean, count, none.
- Use scatter only when both axes are numeric.
- Keep the answer under 120 words and do not invent values you were not given.
</rules>

<question>
{{.Question}}
</question>

Respond with JSON only:
{"answer": "...", "charts": [{"type": "bar", "title": "...", "x": "...", "y": "...", "y2": "", "aggregate": "sum"}], "insights": ["..."]}`))

var dataOpsTemplate = template.Must(template.New("dataops").Funcs(funcs).Parse(`<task>
Extract the data operation the user wants to run on their dataset.
</task>

<dataset>
Columns: {{join .Columns ", "}}
Numeric columns: {{join .Numeric ", "}}
</dataset>

<operations>
remove_nulls, count_nulls, convert_type, delete_rows, delete_column, add_column, update_column, derive_column, remove_outliers, remove_duplicates, normalize, preview_rows
</operations>

<rules>
- column and columns must be copied from the column list.
- filter.operator is one of =, !=, >, >=, <, <=, contains.
- expression for derive_column looks like "Revenue - Cost"; operators are + - * /.
- targetType is number, string or date. method is minmax or zscore.
- Leave a field out when the message does not give it.
</rules>

<message>
{{.Question}}
</message>

Respond with JSON only:
{"operation": "...", "column": "...", "columns": [], "filter": {"column": "...", "operator": "=", "value": "..."}, "newColumn": "...", "expression": "...", "targetType": "...", "method": "...", "value": "..."}`))

type promptData struct {
	Question    string
	RowCount    int
	Columns     []string
	Numeric     []string
	Dates       []string
	Chunks      []string
	PastQueries []string
	History     []chat.Message
}

func newPromptData(question string, hc *Context) promptData {
	return promptData{
		Question:    question,
		RowCount:    hc.Summary.RowCount,
		Columns:     hc.Summary.ColumnNames(),
		Numeric:     hc.Summary.NumericColumns,
		Dates:       hc.Summary.DateColumns,
		Chunks:      hc.Retrieval.DataChunks,
		PastQueries: hc.Retrieval.PastQueries,
		History:     chat.Recent(hc.History, promptHistoryTurns, promptHistoryMaxLen),
	}
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

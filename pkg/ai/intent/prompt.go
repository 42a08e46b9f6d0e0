package intent

import (
	"strings"
	"text/template"

	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
)

const (
	historyTurns  = 10
	historyMaxLen = 500
)

var classifyTemplate = template.Must(template.New("classify").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<task>
Classify the user's question about their dataset and extract the analysis slots.
</task>

<dataset>
Columns: {{join .Columns ", "}}
Numeric columns: {{join .Numeric ", "}}
Date columns: {{join .Dates ", "}}
</dataset>
{{if .History}}
<history>
{{range .History}}{{.Role}}: {{.Content}}
{{end}}</history>
{{end}}
<intent_types>
- correlation: what drives, affects, influences or relates to a numeric column.
- chart: an explicit request to draw, plot, graph or visualize columns.
- statistical: aggregates or extremes of one column, including "which X had the highest/lowest/best/worst Y". "Which month had the best revenue" is statistical, not comparison or correlation.
- comparison: which of several factors is the best or strongest for a target, or comparing two columns side by side.
- conversational: greetings, thanks, farewells and small talk with no data request.
- dataOps: changing the data: removing nulls or duplicates, deleting rows or columns, adding, updating, converting or deriving columns, removing outliers, normalizing, previewing filtered rows.
- custom: anything else about the data.
</intent_types>

<extraction>
- targetVariable: the column being explained or measured, copied from the column list.
- variables: other columns the question names.
- chartType: line, bar, scatter, pie or area when the user asks for one.
- filters.correlationSign: positive, negative or all.
- filters.excludeVariables / filters.includeOnly: columns to leave out or restrict to.
- filters.excludeNegativeFor: columns whose negative impact the user does not want.
- axisMapping: x, y and y2 when the user assigns columns to axes.
- requiresClarification: true only when the question cannot be answered without more detail.
Use only names from the column list. Do not assume any business vocabulary.
</extraction>

<question>
{{.Question}}
</question>

Respond with a single JSON object:
{"type": "...", "confidence": 0.0, "targetVariable": "...", "variables": [], "chartType": "...", "filters": {}, "axisMapping": {}, "customRequest": "...", "requiresClarification": false}`))

type promptData struct {
	Question string
	Columns  []string
	Numeric  []string
	Dates    []string
	History  []chat.Message
}

func renderClassifyPrompt(question string, history []chat.Message, summary dataset.Summary) (string, error) {
	var b strings.Builder
	err := classifyTemplate.Execute(&b, promptData{
		Question: question,
		Columns:  summary.ColumnNames(),
		Numeric:  summary.NumericColumns,
		Dates:    summary.DateColumns,
		History:  chat.Recent(history, historyTurns, historyMaxLen),
	})
	return b.String(), err
}

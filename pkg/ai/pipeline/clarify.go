package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
)

const maxExampleQuestions = 3

var clarifyTemplate = template.Must(template.New("clarify").Funcs(template.FuncMap{"join": strings.Join}).Parse(`<task>
The user asked a question about their dataset that is too ambiguous to answer. Ask ONE short clarifying question that would let you answer it.
</task>

<dataset>
Columns: {{join .Columns ", "}}
Numeric columns: {{join .Numeric ", "}}
</dataset>

<guess>
Most likely intent: {{.Type}}{{if .Target}} about {{.Target}}{{end}}
</guess>

<rules>
- One sentence, ending with a question mark.
- Mention at most three column names, spelled exactly as listed.
- Do not answer the question itself.
</rules>

<question>
{{.Question}}
</question>`))

type clarifyData struct {
	Question string
	Type     string
	Target   string
	Columns  []string
	Numeric  []string
}

// clarify asks the model for a clarifying question and falls back to a
// template naming the numeric columns.
func (o *Orchestrator) clarify(ctx context.Context, question string, in intent.Intent, summary dataset.Summary, d *degradation) *QueryResult {
	ctx, span := o.tracer.Start(ctx, "pipeline.clarify")
	defer span.End()

	text, err := o.askClarifying(ctx, question, in, summary)
	if err != nil {
		o.logger.Warn("ORCHESTRATOR", "Clarifying question fell back to template", map[string]interface{}{
			"intent": string(in.Type),
			"error":  err.Error(),
		})
		d.add(ReasonClarifyFallback)
		text = templatedClarification(in, summary)
	}
	return &QueryResult{
		Answer:                text,
		RequiresClarification: true,
		Suggestions:           exampleQuestions(in, summary),
	}
}

func (o *Orchestrator) askClarifying(ctx context.Context, question string, in intent.Intent, summary dataset.Summary) (string, error) {
	if o.llm == nil {
		return "", errors.New("no completer configured")
	}
	var buf bytes.Buffer
	err := clarifyTemplate.Execute(&buf, clarifyData{
		Question: question,
		Type:     string(in.Type),
		Target:   in.TargetVariable,
		Columns:  summary.ColumnNames(),
		Numeric:  summary.NumericColumns,
	})
	if err != nil {
		return "", err
	}

	out, err := o.llm.Complete(ctx, llm.TaskGeneration,
		[]llm.Message{{Role: llm.RoleUser, Content: buf.String()}},
		llm.WithTemperature(0.4),
		llm.WithMaxTokens(120),
	)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty clarifying question")
	}
	return out, nil
}

func templatedClarification(in intent.Intent, summary dataset.Summary) string {
	numeric := summary.NumericColumns
	if len(numeric) > maxExampleQuestions {
		numeric = numeric[:maxExampleQuestions]
	}
	switch {
	case in.TargetVariable != "":
		return fmt.Sprintf("What would you like to know about %s? For example, what affects it or how it changes over time?", in.TargetVariable)
	case len(numeric) > 0:
		return fmt.Sprintf("Could you tell me which column you're interested in? Numeric columns include %s.", strings.Join(numeric, ", "))
	case len(summary.Columns) > 0:
		return fmt.Sprintf("Could you tell me more about what you'd like to see? The dataset has these columns: %s.", strings.Join(summary.ColumnNames(), ", "))
	}
	return "Could you tell me more about what you'd like to see?"
}

// exampleQuestions suggests questions shaped by the intent type.
func exampleQuestions(in intent.Intent, summary dataset.Summary) []string {
	if len(summary.NumericColumns) == 0 {
		return nil
	}
	target := summary.NumericColumns[0]
	if in.TargetVariable != "" && summary.IsNumeric(in.TargetVariable) {
		target = in.TargetVariable
	}
	axis := ""
	if len(summary.DateColumns) > 0 {
		axis = summary.DateColumns[0]
	} else if others := summary.NonNumericColumns(); len(others) > 0 {
		axis = others[0]
	}

	byAxis := ""
	if axis != "" {
		byAxis = fmt.Sprintf("Show %s by %s", target, axis)
	}
	candidates := map[intent.Type][]string{
		intent.TypeCorrelation: {fmt.Sprintf("What affects %s?", target), fmt.Sprintf("Which is the best predictor for %s?", target)},
		intent.TypeChart:       {byAxis, fmt.Sprintf("What affects %s?", target)},
		intent.TypeStatistical: {fmt.Sprintf("What is the average %s?", target), fmt.Sprintf("Which row had the highest %s?", target)},
		intent.TypeComparison:  {fmt.Sprintf("Which is the best predictor for %s?", target), byAxis},
	}
	list, ok := candidates[in.Type]
	if !ok {
		list = []string{fmt.Sprintf("What affects %s?", target), byAxis, fmt.Sprintf("What is the average %s?", target)}
	}

	var out []string
	for _, s := range list {
		if s != "" && len(out) < maxExampleQuestions {
			out = append(out, s)
		}
	}
	return out
}

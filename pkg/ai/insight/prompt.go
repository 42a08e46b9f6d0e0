package insight

import (
	"strings"
	"text/template"

	"ai-insights-be/pkg/stats"
)

var promptTemplate = template.Must(template.New("insight").Funcs(template.FuncMap{
	"num": stats.Format,
}).Parse(`<task>
You are a data analyst. Write one key insight and one recommendation for the chart below.
</task>

<chart>
Type: {{.Spec.Type}}
Title: {{.Spec.Title}}
X axis: {{.Spec.X}}
Y axis: {{.Spec.Y}}{{if .Spec.Y2}}
Secondary Y axis: {{.Spec.Y2}}{{end}}{{if .Spec.Aggregate}}
Aggregation: {{.Spec.Aggregate}}{{end}}
Points: {{.Points}}
</chart>

<statistics>
{{range .Series}}{{.Name}}: min {{num .Stats.Min}}, max {{num .Stats.Max}}, mean {{num .Stats.Mean}}, p25 {{num .Stats.P25}}, median {{num .Stats.Median}}, p75 {{num .Stats.P75}}, p90 {{num .Stats.P90}}, std dev {{num .Stats.StdDev}}, cv {{num .Stats.CV}}
{{end}}{{if .TopBand}}Rows in the top 20% of {{.Spec.Y}} (>= {{num .TopBand.Threshold}}) have {{.Spec.X}} between {{num .TopBand.Min}} and {{num .TopBand.Max}} (average {{num .TopBand.Mean}}).
{{end}}</statistics>

<sample>
{{.Sample}}
</sample>

<rules>
- Quote concrete numbers from the statistics.
- Each field is 1-2 sentences and at most 220 characters.{{if .Spec.Y2}}
- Mention both {{.Spec.Y}} and {{.Spec.Y2}} in the key insight.{{end}}
- Do not claim causation.
</rules>

Respond with JSON only: {"keyInsight": "...", "recommendation": "..."}`))

type series struct {
	Name  string
	Stats stats.Descriptive
}

// topBand is the x range observed where y sits in its top 20%.
type topBand struct {
	Threshold float64
	Min       float64
	Max       float64
	Mean      float64
}

type promptData struct {
	Spec    specView
	Points  int
	Series  []series
	TopBand *topBand
	Sample  string
}

type specView struct {
	Type, Title, X, Y, Y2, Aggregate string
}

func renderPrompt(data promptData) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

package correlation

import (
	"strings"
	"text/template"

	"ai-insights-be/pkg/stats"
)

var narrativeTemplate = template.Must(template.New("correlation").Funcs(template.FuncMap{
	"num": stats.Format,
	"r":   formatR,
}).Parse(`<task>
You explain which factors move {{.Target}}. Write one insight per factor below.
</task>

<filter>
{{.FilterNote}}
</filter>

<correlations>
{{range .Factors}}- {{.Variable}}: r = {{r .R}} ({{.Strength}} {{.Sign}}, n = {{.N}})
{{end}}</correlations>

<factor_statistics>
{{range .Factors}}{{.Variable}}: range {{num .Stats.Min}} to {{num .Stats.Max}}, average {{num .Stats.Mean}}, p25 {{num .Stats.P25}}, median {{num .Stats.Median}}, p75 {{num .Stats.P75}}{{if .Optimal}}; when {{$.Target}} is in its top 10% the factor ranges {{num .Optimal.Min}} to {{num .Optimal.Max}}{{end}}
{{end}}</factor_statistics>

<rules>
- Mention every factor listed above at least once.
- Report each correlation with its sign exactly as given. Never describe a negative r as positive or a positive r as negative.
- Quote concrete numbers.
- Every insight ends with a reminder that correlation does not imply causation.
</rules>

Respond with JSON only: {"insights": ["...", "..."]}`))

type factorView struct {
	Variable string
	R        float64
	N        int
	Strength string
	Sign     string
	Stats    stats.Descriptive
	Optimal  *stats.Descriptive
}

type narrativeData struct {
	Target     string
	FilterNote string
	Factors    []factorView
}

func renderNarrative(data narrativeData) (string, error) {
	var b strings.Builder
	if err := narrativeTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

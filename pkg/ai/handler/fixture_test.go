package handler

import (
	"fmt"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/insight"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/llm"
)

var revenueByMonth = []float64{100, 120, 90, 180, 150, 130, 110, 170, 160, 140, 125, 115}

var salesColumns = []string{"Month", "Revenue", "Cost", "Ads", "Discount", "Region"}

func salesRows() []dataset.Row {
	rows := make([]dataset.Row, 0, len(revenueByMonth))
	for i, rev := range revenueByMonth {
		region := "North"
		if i%2 == 1 {
			region = "South"
		}
		rows = append(rows, dataset.Row{
			"Month":    fmt.Sprintf("2024-%02d", i+1),
			"Revenue":  rev,
			"Cost":     rev * 0.6,
			"Ads":      float64(2 * (i + 1)),
			"Discount": float64(13 - (i + 1)),
			"Region":   region,
		})
	}
	return rows
}

func salesContext(question string) *Context {
	rows := salesRows()
	return &Context{
		Question:  question,
		Data:      rows,
		Summary:   dataset.Summarize(rows, salesColumns),
		SessionID: "session-1",
	}
}

func newSynth(c llm.Completer) *insight.Synthesizer {
	return insight.NewSynthesizer(c, logger.NewNop())
}

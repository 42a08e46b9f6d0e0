package rag

import (
	"fmt"
	"strings"

	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/rag/vector"
	"ai-insights-be/pkg/stats"
)

const (
	maxStatColumns  = 5
	rowsPerGroup    = 50
	maxIndexedRows  = 200
	rowSampleSize   = 3
	columnSampleLen = 5
)

// BuildChunks produces the bounded corpus for one dataset: a chunk per
// column, statistics for the first numeric columns, and sampled row groups.
func BuildChunks(rows []dataset.Row, summary dataset.Summary) []vector.Chunk {
	var chunks []vector.Chunk

	for _, col := range summary.Columns {
		samples := col.SampleValues
		if len(samples) > columnSampleLen {
			samples = samples[:columnSampleLen]
		}
		vals := make([]string, 0, len(samples))
		for _, v := range samples {
			vals = append(vals, dataset.ToString(v))
		}
		chunks = append(chunks, vector.Chunk{
			ID:       "column:" + col.Name,
			Type:     vector.ChunkColumn,
			Content:  fmt.Sprintf("Column %q has type %s. Sample values: %s.", col.Name, col.Type, strings.Join(vals, ", ")),
			Metadata: map[string]interface{}{"column": col.Name, "type": string(col.Type)},
		})
	}

	for i, col := range summary.NumericColumns {
		if i >= maxStatColumns {
			break
		}
		d, ok := stats.Describe(dataset.NumericValues(rows, col))
		if !ok {
			continue
		}
		chunks = append(chunks, vector.Chunk{
			ID:   "stat:" + col,
			Type: vector.ChunkStatistical,
			Content: fmt.Sprintf("Statistics for %s: min %s, max %s, median %s, mean %s over %d values.",
				col, stats.Format(d.Min), stats.Format(d.Max), stats.Format(d.Median), stats.Format(d.Mean), d.Count),
			Metadata: map[string]interface{}{"column": col},
		})
	}

	limit := len(rows)
	if limit > maxIndexedRows {
		limit = maxIndexedRows
	}
	columns := summary.ColumnNames()
	for start := 0; start < limit; start += rowsPerGroup {
		end := start + rowsPerGroup
		if end > limit {
			end = limit
		}
		var sample []string
		for _, r := range rows[start:min(start+rowSampleSize, end)] {
			sample = append(sample, describeRow(r, columns))
		}
		chunks = append(chunks, vector.Chunk{
			ID:       fmt.Sprintf("rows:%d-%d", start+1, end),
			Type:     vector.ChunkRowGroup,
			Content:  fmt.Sprintf("Rows %d to %d of %d. Sample: %s", start+1, end, len(rows), strings.Join(sample, "; ")),
			Metadata: map[string]interface{}{"start": start, "end": end},
		})
	}
	return chunks
}

func describeRow(r dataset.Row, columns []string) string {
	if len(columns) == 0 {
		columns = dataset.ColumnOrder([]dataset.Row{r})
	}
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, fmt.Sprintf("%s=%s", c, dataset.ToString(r[c])))
	}
	return strings.Join(parts, ", ")
}

// Command trace_query runs questions against a spreadsheet through the full
// analysis pipeline and prints every stage's outcome.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ai-insights-be/internal/bootstrap"
	"ai-insights-be/internal/config"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/repository/memory"
	"ai-insights-be/pkg/ai/pipeline"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	file := flag.String("file", "", "path to a .xlsx or .csv dataset")
	verbose := flag.Bool("json", false, "print the raw result as JSON")
	flag.Parse()

	if *file == "" {
		color.Red("usage: trace_query -file data.xlsx [question ...]")
		os.Exit(2)
	}

	rows, columns, err := loadTable(*file)
	if err != nil {
		color.Red("Failed to load %s: %v", *file, err)
		os.Exit(1)
	}
	summary := dataset.Summarize(rows, columns)

	color.Cyan("Dataset %s: %d rows, %d columns", *file, summary.RowCount, summary.ColumnCount)
	for _, line := range summary.Describe() {
		fmt.Println("  " + line)
	}

	cfg := config.Load()
	log := logger.NewZapLogger("logs/trace_query.log", false)
	defer log.Sync()

	completer, err := bootstrap.NewCompleter(cfg, log)
	if err != nil {
		color.Red("LLM unavailable: %v", err)
		os.Exit(1)
	}
	analysis := bootstrap.NewAnalysis(cfg, bootstrap.AnalysisDeps{
		Completer: completer,
		Embedder:  bootstrap.NewEmbeddingProvider(cfg, log),
		DataOps:   memory.NewDataOpsRepository(),
	}, log)

	questions := flag.Args()
	interactive := len(questions) == 0
	scanner := bufio.NewScanner(os.Stdin)
	sessionID := uuid.NewString()
	var history []chat.Message

	next := func() (string, bool) {
		if !interactive {
			if len(questions) == 0 {
				return "", false
			}
			q := questions[0]
			questions = questions[1:]
			return q, true
		}
		color.New(color.FgHiBlack).Print("\n? ")
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		question, ok := next()
		if !ok {
			return
		}
		if question == "" {
			continue
		}

		color.Yellow("\n>>> %s", question)
		started := time.Now()
		res := analysis.Orchestrator.ProcessQuery(context.Background(), pipeline.Query{
			Question:  question,
			History:   history,
			Data:      rows,
			Summary:   summary,
			SessionID: sessionID,
		})
		printResult(res, time.Since(started), *verbose)

		now := time.Now()
		history = append(history,
			chat.Message{Role: chat.RoleUser, Content: question, Timestamp: now},
			chat.Message{Role: chat.RoleAssistant, Content: res.Answer, Charts: res.Charts, Insights: res.Insights, Timestamp: now},
		)
	}
}

func printResult(res *pipeline.QueryResult, elapsed time.Duration, asJSON bool) {
	if res.ResolvedQuery != "" {
		fmt.Printf("resolved:  %s\n", res.ResolvedQuery)
	}
	fmt.Printf("intent:    %s (confidence %.2f)\n", res.Intent.Type, res.Intent.Confidence)
	fmt.Printf("handler:   %s\n", res.Handler)
	fmt.Printf("elapsed:   %s\n", elapsed.Round(time.Millisecond))
	if res.Degraded {
		color.Red("degraded:  %s", strings.Join(res.DegradedReasons, ", "))
	} else {
		color.Green("degraded:  no")
	}

	color.Cyan("\n%s", res.Answer)
	for _, c := range res.Charts {
		fmt.Printf("  [chart] %s %s (%d points)\n", c.Type, c.Title, len(c.Data))
	}
	for _, in := range res.Insights {
		fmt.Printf("  [insight] %s\n", in.Text)
	}
	for _, s := range res.Suggestions {
		color.HiBlack("  try: %s", s)
	}
	if res.Dataset != nil {
		color.Magenta("  dataset now v%d (%d rows)", res.Dataset.Version, res.Dataset.RowCount)
	}

	if asJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
	}
}

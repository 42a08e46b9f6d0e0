package handler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/ai/correlation"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/llm"
	"ai-insights-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOffline = errors.New("offline")

func TestConversational_UsesModelReply(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text("  Hi! Ask me what drives Revenue.  "))
	h := NewConversationalHandler(c, logger.NewNop())

	resp, err := h.Handle(context.Background(), intent.Intent{Type: intent.TypeConversational}, salesContext("hi"))
	require.NoError(t, err)

	assert.Equal(t, "Hi! Ask me what drives Revenue.", resp.Answer)
	assert.False(t, resp.Degraded)
	require.Len(t, c.Calls, 1)
	assert.InDelta(t, 0.9, c.Calls[0].Options.Temperature, 1e-9)
	assert.Equal(t, llm.TaskGeneration, c.Calls[0].Task)
}

func TestConversational_FallsBackToCannedReply(t *testing.T) {
	h := NewConversationalHandler(llmtest.Failing(errOffline), logger.NewNop())

	resp, err := h.Handle(context.Background(), intent.Intent{Type: intent.TypeConversational}, salesContext("hello"))
	require.NoError(t, err)

	assert.Equal(t, cannedGreeting, resp.Answer)
	assert.True(t, resp.Degraded)
}

func TestCannedReply(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"hi", cannedGreeting},
		{"Good morning!", cannedGreeting},
		{"thanks a lot", cannedThanks},
		{"bye for now", cannedFarewell},
		{"what's up with my data", cannedDefault},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, CannedReply(tt.question))
		})
	}
}

func newStatistical() *StatisticalHandler {
	return NewStatisticalHandler(chart.NewProcessor(), newSynth(llmtest.Failing(errOffline)), logger.NewNop())
}

func TestStatistical_ExtremalRow(t *testing.T) {
	h := newStatistical()
	in := intent.Intent{Type: intent.TypeStatistical, Confidence: 0.9, TargetVariable: "Revenue"}

	resp, err := h.Handle(context.Background(), in, salesContext("which month had the highest Revenue?"))
	require.NoError(t, err)
	assert.Equal(t, "2024-04 had the highest Revenue at 180.", resp.Answer)
	require.Len(t, resp.Charts, 1)
	assert.Equal(t, chart.TypeLine, resp.Charts[0].Type)
	assert.Equal(t, "Month", resp.Charts[0].X)
	assert.NotEmpty(t, resp.Charts[0].KeyInsight)

	resp, err = h.Handle(context.Background(), in, salesContext("Which month had the lowest revenue"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03 had the lowest Revenue at 90.", resp.Answer)
}

func TestStatistical_MentionedCategoryIsIdentifier(t *testing.T) {
	resp, err := newStatistical().Handle(context.Background(),
		intent.Intent{Type: intent.TypeStatistical, Confidence: 0.8},
		salesContext("Which Region had the biggest Revenue?"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Answer, "North had the highest Revenue at 180") ||
		strings.HasPrefix(resp.Answer, "South had the highest Revenue at 180"))
	require.Len(t, resp.Charts, 1)
	assert.Equal(t, chart.TypeBar, resp.Charts[0].Type)
}

func TestStatistical_Aggregates(t *testing.T) {
	resp, err := newStatistical().Handle(context.Background(),
		intent.Intent{Type: intent.TypeStatistical, Confidence: 0.8, TargetVariable: "revenue"},
		salesContext("what is the average Revenue"))
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "average 132.5")
	assert.Contains(t, resp.Answer, "from 90 to 180")
	assert.Len(t, resp.Insights, 6)
	assert.Empty(t, resp.Charts)
}

func TestStatistical_ColumnErrors(t *testing.T) {
	h := newStatistical()
	hc := salesContext("stats please")

	_, err := h.Handle(context.Background(), intent.Intent{Type: intent.TypeStatistical, TargetVariable: "Region"}, hc)
	var nonNumeric *NonNumericTargetError
	require.ErrorAs(t, err, &nonNumeric)
	assert.Equal(t, "Region", nonNumeric.Column)

	_, err = h.Handle(context.Background(), intent.Intent{Type: intent.TypeStatistical, TargetVariable: "Profit"}, hc)
	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)

	resp, ok := DescribeError(err, hc.Summary)
	require.True(t, ok)
	assert.True(t, resp.RequiresClarification)
	assert.Contains(t, resp.Answer, `"Profit"`)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestStatistical_EmptyDataset(t *testing.T) {
	hc := salesContext("which month had the highest Revenue")
	hc.Data = nil

	_, err := newStatistical().Handle(context.Background(), intent.Intent{Type: intent.TypeStatistical, TargetVariable: "Revenue"}, hc)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func newGeneral(c llm.Completer) *GeneralHandler {
	return NewGeneralHandler(c, chart.NewProcessor(), newSynth(c), logger.NewNop())
}

func TestGeneral_RevenueVsCategoryIsMeanBar(t *testing.T) {
	resp, err := newGeneral(llmtest.Failing(errOffline)).Handle(context.Background(),
		intent.Intent{Type: intent.TypeChart, Confidence: 0.9},
		salesContext("Revenue vs Region"))
	require.NoError(t, err)

	require.Len(t, resp.Charts, 1)
	c := resp.Charts[0]
	assert.Equal(t, chart.TypeBar, c.Type)
	assert.Equal(t, chart.AggregateMean, c.Aggregate)
	assert.Equal(t, "Region", c.X)
	assert.Equal(t, "Revenue", c.Y)
	assert.Len(t, c.Data, 2)
	assert.False(t, c.IsCorrelationChart)
}

func TestMatchChartRule(t *testing.T) {
	hc := salesContext("")
	hc.History = []chat.Message{
		{Role: chat.RoleUser, Content: "plot revenue by month"},
		{Role: chat.RoleAssistant, Content: "Here it is.", Charts: []chart.Spec{
			{Type: chart.TypeLine, Title: "Revenue by Month", X: "Month", Y: "Revenue", Aggregate: chart.AggregateSum},
		}},
	}

	tests := []struct {
		question string
		rule     string
		want     chartRequest
	}{
		{"add Cost on a secondary axis", RuleSecondaryAxis, chartRequest{Type: chart.TypeLine, X: "Month", Y: "Revenue", Y2: "Cost", Aggregate: chart.AggregateSum}},
		{"show the correlation between Revenue and Cost", RuleCorrelation, chartRequest{Type: chart.TypeScatter, X: "Revenue", Y: "Cost", Aggregate: chart.AggregateNone, Correlation: true}},
		{"scatter plot of Revenue vs Ads", RuleScatter, chartRequest{Type: chart.TypeScatter, X: "Ads", Y: "Revenue", Aggregate: chart.AggregateNone}},
		{"plot Revenue and Cost over Month", RuleTwoSeries, chartRequest{Type: chart.TypeLine, X: "Month", Y: "Revenue", Y2: "Cost", Aggregate: chart.AggregateSum}},
		{"Revenue against Ads", RuleAgainst, chartRequest{Type: chart.TypeScatter, X: "Ads", Y: "Revenue", Aggregate: chart.AggregateNone}},
		{"Revenue vs Month", RuleVersus, chartRequest{Type: chart.TypeLine, X: "Month", Y: "Revenue", Aggregate: chart.AggregateMean}},
		{"Region vs Revenue", RuleVersus, chartRequest{Type: chart.TypeBar, X: "Region", Y: "Revenue", Aggregate: chart.AggregateMean}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			rule, req, ok := MatchChartRule(tt.question, hc)
			require.True(t, ok)
			assert.Equal(t, tt.rule, rule)
			req.Base = nil
			assert.Equal(t, tt.want, req)
		})
	}

	_, _, ok := MatchChartRule("tell me a story about my data", hc)
	assert.False(t, ok)
	_, _, ok = MatchChartRule("Profit vs Region", hc)
	assert.False(t, ok)
}

func TestGeneral_SecondaryAxisKeepsBothSeries(t *testing.T) {
	hc := salesContext("add Cost on a secondary axis")
	hc.History = []chat.Message{{Role: chat.RoleAssistant, Charts: []chart.Spec{
		{Type: chart.TypeLine, Title: "Revenue by Month", X: "Month", Y: "Revenue", Aggregate: chart.AggregateSum},
	}}}

	resp, err := newGeneral(llmtest.Failing(errOffline)).Handle(context.Background(), intent.Intent{Type: intent.TypeChart, Confidence: 0.9}, hc)
	require.NoError(t, err)

	require.Len(t, resp.Charts, 1)
	assert.Equal(t, "Revenue by Month with Cost", resp.Charts[0].Title)
	assert.Contains(t, resp.Charts[0].KeyInsight, "Revenue")
	assert.Contains(t, resp.Charts[0].KeyInsight, "Cost")
}

func TestGeneral_InterpretsWithModel(t *testing.T) {
	c := llmtest.NewScripted(llmtest.Text(`{
		"answer": "Revenue is highest in the North.",
		"charts": [
			{"type": "bar", "title": "Revenue by Region", "x": "region", "y": "revenue", "aggregate": "mean"},
			{"type": "line", "x": "Profit", "y": "Revenue"}
		],
		"insights": ["North leads.", " "]
	}`))

	resp, err := newGeneral(c).Handle(context.Background(), intent.Intent{Type: intent.TypeCustom, Confidence: 0.7}, salesContext("tell me something interesting"))
	require.NoError(t, err)

	assert.Equal(t, "Revenue is highest in the North.", resp.Answer)
	require.Len(t, resp.Charts, 1)
	assert.Equal(t, "Region", resp.Charts[0].X)
	assert.Equal(t, "Revenue", resp.Charts[0].Y)
	assert.NotEmpty(t, resp.Charts[0].Data)
	assert.Equal(t, []chart.Insight{{ID: 1, Text: "North leads."}}, resp.Insights)
	assert.Equal(t, llm.FormatJSON, c.Calls[0].Options.ResponseFormat)
}

func TestGeneral_ModelFailureIsAnError(t *testing.T) {
	_, err := newGeneral(llmtest.Failing(errOffline)).Handle(context.Background(), intent.Intent{Type: intent.TypeCustom}, salesContext("tell me a story"))
	assert.ErrorIs(t, err, errOffline)
}

func newComparison() *ComparisonHandler {
	c := llmtest.Failing(errOffline)
	return NewComparisonHandler(newGeneral(c), chart.NewProcessor(), newSynth(c), logger.NewNop())
}

func TestComparison_BestRanksPositiveOnly(t *testing.T) {
	resp, err := newComparison().Handle(context.Background(),
		intent.Intent{Type: intent.TypeComparison, Confidence: 0.8, TargetVariable: "Revenue"},
		salesContext("Which is the best predictor for Revenue?"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Answer, "Cost is the best predictor for Revenue"), resp.Answer)
	require.Len(t, resp.Charts, 1)
	bar := resp.Charts[0]
	assert.Equal(t, "Best predictor for Revenue", bar.Title)
	for _, pt := range bar.Data {
		assert.NotEqual(t, "Discount", pt[correlation.RankingVariable])
		assert.Greater(t, pt[correlation.RankingValue].(float64), 0.0)
	}
	assert.Len(t, resp.Insights, 2)
}

func TestComparison_DelegatesDirectComparison(t *testing.T) {
	resp, err := newComparison().Handle(context.Background(),
		intent.Intent{Type: intent.TypeComparison, Confidence: 0.8},
		salesContext("Revenue vs Region"))
	require.NoError(t, err)

	require.Len(t, resp.Charts, 1)
	assert.Equal(t, "Region", resp.Charts[0].X)
	assert.Equal(t, chart.AggregateMean, resp.Charts[0].Aggregate)
}

func TestComparison_CandidatesFromHistoryList(t *testing.T) {
	hc := salesContext("Which of these is the best driver of Revenue?")
	hc.History = []chat.Message{
		{Role: chat.RoleUser, Content: "list some factors"},
		{Role: chat.RoleAssistant, Content: "Top factors:\n1. Cost: moves with revenue\n2. Ads: grows every month"},
	}

	resp, err := newComparison().Handle(context.Background(), intent.Intent{Type: intent.TypeComparison, Confidence: 0.8}, hc)
	require.NoError(t, err)

	require.Len(t, resp.Insights, 2)
	assert.Contains(t, resp.Insights[0].Text, "Cost")
	assert.Contains(t, resp.Insights[1].Text, "Ads")
}

func TestComparison_NoPositiveCandidate(t *testing.T) {
	hc := salesContext("Which is the best lever for Revenue?")
	_, err := newComparison().Handle(context.Background(),
		intent.Intent{Type: intent.TypeComparison, Confidence: 0.8, TargetVariable: "Revenue", Variables: []string{"Discount"}}, hc)
	require.ErrorIs(t, err, ErrEmptyFilterResult)

	resp, ok := DescribeError(err, hc.Summary)
	require.True(t, ok)
	assert.Contains(t, resp.Answer, "Discount")
}

func newCorrelation() *CorrelationHandler {
	c := llmtest.Failing(errOffline)
	log := logger.NewNop()
	return NewCorrelationHandler(correlation.NewEngine(c, newSynth(c), chart.NewProcessor(), log), log)
}

func TestCorrelation_WhatAffectsRevenue(t *testing.T) {
	resp, err := newCorrelation().Handle(context.Background(),
		intent.Intent{Type: intent.TypeCorrelation, Confidence: 0.9, TargetVariable: "Revenue"},
		salesContext("What affects Revenue?"))
	require.NoError(t, err)

	var scatter, bars int
	for _, c := range resp.Charts {
		switch c.Type {
		case chart.TypeScatter:
			scatter++
		case chart.TypeBar:
			bars++
		}
	}
	assert.GreaterOrEqual(t, scatter, 1)
	assert.Equal(t, 1, bars)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.Answer, "Cost")
}

func TestCorrelation_DiscoversTargetFromQuestion(t *testing.T) {
	resp, err := newCorrelation().Handle(context.Background(),
		intent.Intent{Type: intent.TypeCorrelation, Confidence: 0.9},
		salesContext("What drives Revenue?"))
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "against Revenue")
}

func TestCorrelation_TargetErrors(t *testing.T) {
	h := newCorrelation()

	_, err := h.Handle(context.Background(), intent.Intent{Type: intent.TypeCorrelation, TargetVariable: "Region"}, salesContext("what affects Region"))
	var nonNumeric *NonNumericTargetError
	assert.ErrorAs(t, err, &nonNumeric)

	_, err = h.Handle(context.Background(), intent.Intent{Type: intent.TypeCorrelation, TargetVariable: "Profit"}, salesContext("what affects profit"))
	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Profit", notFound.Name)
}

func TestCorrelation_NegativeOverrideDropsOnlyNamedVariable(t *testing.T) {
	resp, err := newCorrelation().Handle(context.Background(),
		intent.Intent{Type: intent.TypeCorrelation, Confidence: 0.9, TargetVariable: "Revenue"},
		salesContext("What affects Revenue? I don't want negative impact from Discount"))
	require.NoError(t, err)

	for _, c := range resp.Charts {
		assert.NotEqual(t, "Discount", c.X)
	}
	for _, in := range resp.Insights {
		assert.NotContains(t, in.Text, "Discount")
	}
}

func TestCorrelation_FilterLeavesNothing(t *testing.T) {
	hc := salesContext("which factors positively affect Revenue")
	_, err := newCorrelation().Handle(context.Background(), intent.Intent{
		Type:           intent.TypeCorrelation,
		Confidence:     0.9,
		TargetVariable: "Revenue",
		Filters:        &intent.Filters{CorrelationSign: intent.SignPositive, IncludeOnly: []string{"Discount"}},
	}, hc)
	require.ErrorIs(t, err, ErrEmptyFilterResult)

	resp, ok := DescribeError(err, hc.Summary)
	require.True(t, ok)
	assert.Equal(t, "No column has a positive correlation with Revenue.", resp.Answer)
}

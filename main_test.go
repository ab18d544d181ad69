package main

import (
	"strings"
	"testing"

	"vizchat/agent"
)

func TestPrintTurn_AssistantMessages(t *testing.T) {
	var out strings.Builder
	printTurn(&out, &App{}, &agent.TurnResult{
		Messages: []agent.ChatMessage{
			{Role: "user", Content: "hidden"},
			{Role: "assistant", Content: "East leads with 300."},
		},
	})

	if !strings.Contains(out.String(), "East leads with 300.") {
		t.Errorf("assistant message missing:\n%s", out.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Errorf("user messages must not be echoed:\n%s", out.String())
	}
}

func TestPrintTurn_ClarificationPrompt(t *testing.T) {
	var out strings.Builder
	printTurn(&out, &App{}, &agent.TurnResult{
		Messages: []agent.ChatMessage{
			{Role: "assistant", Content: "Group by which column?"},
		},
		AwaitingClarification: &agent.ClarificationPayload{
			Question:       "Group by which column?",
			TargetProperty: "groupByColumn",
		},
	})

	if !strings.Contains(out.String(), "answer the question above") {
		t.Errorf("paused turn must prompt for the answer:\n%s", out.String())
	}

	out.Reset()
	printTurn(&out, &App{}, &agent.TurnResult{
		Messages: []agent.ChatMessage{{Role: "assistant", Content: "done"}},
	})
	if strings.Contains(out.String(), "answer the question above") {
		t.Errorf("completed turn must not prompt:\n%s", out.String())
	}
}

func TestPrintCard(t *testing.T) {
	var out strings.Builder
	printCard(&out, agent.AnalysisCard{
		ID: "c1",
		Plan: agent.AnalysisPlan{
			ChartType: "bar", Title: "Sales by Region", Description: "Totals per region.",
		},
		Rows:    []agent.AggregatedRow{{"Region": "East", "Sales": 300.0}},
		Summary: "East: 300",
	})

	for _, want := range []string{"Sales by Region", "Totals per region.", "East: 300"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("card output missing %q:\n%s", want, out.String())
		}
	}
}

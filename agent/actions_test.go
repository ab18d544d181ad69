package agent

import (
	"testing"
)

func TestDecodeActionsResponse_Envelope(t *testing.T) {
	content := `{"actions":[
		{"type":"text_response","thought":"greet","text":"Hello!"},
		{"type":"plan_creation","thought":"chart it","plan":{"chartType":"bar","title":"Sales by Region","aggregation":"sum","groupByColumn":"Region","valueColumn":"Sales"}}
	]}`

	actions, err := DecodeActionsResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Type != ActionTextResponse || actions[0].Text != "Hello!" {
		t.Errorf("first action = %+v", actions[0])
	}
	if actions[1].Type != ActionPlanCreation || actions[1].Plan == nil {
		t.Fatalf("second action = %+v", actions[1])
	}
	if actions[1].Plan.GroupByColumn != "Region" || actions[1].Plan.Aggregation != AggregationSum {
		t.Errorf("plan = %+v", actions[1].Plan)
	}
}

func TestDecodeActionsResponse_Fenced(t *testing.T) {
	content := "```json\n{\"actions\":[{\"type\":\"text_response\",\"thought\":\"t\",\"text\":\"hi\"}]}\n```"
	actions, err := DecodeActionsResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 || actions[0].Text != "hi" {
		t.Errorf("got %+v", actions)
	}
}

func TestNormalizeActions_LiftsTopLevelPlanFields(t *testing.T) {
	// Shape drift: plan fields at the action's top level instead of under
	// "plan".
	raw := []map[string]interface{}{
		{
			"type":          "plan_creation",
			"thought":       "chart it",
			"chartType":     "pie",
			"aggregation":   "count",
			"groupByColumn": "Category",
		},
	}

	actions := NormalizeActions(raw)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Plan == nil {
		t.Fatal("plan fields were not lifted")
	}
	if actions[0].Plan.ChartType != ChartTypePie || actions[0].Plan.GroupByColumn != "Category" {
		t.Errorf("lifted plan = %+v", actions[0].Plan)
	}
}

func TestAiAction_Title(t *testing.T) {
	withPlan := AiAction{Type: ActionPlanCreation, Plan: &AnalysisPlan{Title: "Sales by Region"}}
	if withPlan.Title() != "Sales by Region" {
		t.Errorf("Title() = %q", withPlan.Title())
	}

	withTool := AiAction{Type: ActionDomAction, DomAction: &DomActionPayload{ToolName: DomToolHighlight}}
	if withTool.Title() != DomToolHighlight {
		t.Errorf("Title() = %q", withTool.Title())
	}

	bare := AiAction{Type: ActionTextResponse}
	if bare.Title() != string(ActionTextResponse) {
		t.Errorf("Title() = %q", bare.Title())
	}
}

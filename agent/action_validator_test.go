package agent

import (
	"strings"
	"testing"
)

func validationCtx(cardIDs ...string) ValidationContext {
	ids := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		ids[id] = true
	}
	return ValidationContext{CardIDs: ids}
}

func TestValidateAction_RequiresThought(t *testing.T) {
	result := ValidateAction(AiAction{
		Type: ActionTextResponse,
		Text: "hello",
	}, validationCtx())

	if result.IsValid {
		t.Fatal("action without thought must be invalid")
	}
	if !strings.Contains(result.Errors, "missing thought") {
		t.Errorf("errors %q should name the missing thought", result.Errors)
	}
}

func TestValidateAction_TextResponse(t *testing.T) {
	valid := ValidateAction(AiAction{
		Type: ActionTextResponse, Thought: "answer directly", Text: "hello",
	}, validationCtx())
	if !valid.IsValid {
		t.Errorf("expected valid, got %q", valid.Errors)
	}

	empty := ValidateAction(AiAction{
		Type: ActionTextResponse, Thought: "answer directly", Text: "  ",
	}, validationCtx())
	if empty.IsValid {
		t.Error("blank text must be invalid")
	}
}

func TestValidateAction_ScatterWithGroupBy(t *testing.T) {
	result := ValidateAction(AiAction{
		Type:    ActionPlanCreation,
		Thought: "plot the correlation",
		Plan: &AnalysisPlan{
			ChartType:     ChartTypeScatter,
			Title:         "Price vs Units",
			XValueColumn:  "Price",
			YValueColumn:  "Units",
			GroupByColumn: "Region",
		},
	}, validationCtx())

	if result.IsValid {
		t.Fatal("scatter with groupByColumn must be invalid")
	}
	if !strings.Contains(result.Errors, "scatter plots must not provide groupByColumn") {
		t.Errorf("errors %q should name the scatter/groupBy conflict", result.Errors)
	}
	if strings.Count(result.Errors, "\n") != 1 {
		t.Errorf("expected exactly one error bullet, got %q", result.Errors)
	}
	if !strings.Contains(result.Errors, "Price vs Units") {
		t.Errorf("errors %q should name the offending plan", result.Errors)
	}
}

func TestValidateAction_ScatterMissingAxes(t *testing.T) {
	result := ValidateAction(AiAction{
		Type:    ActionPlanCreation,
		Thought: "scatter",
		Plan:    &AnalysisPlan{ChartType: ChartTypeScatter},
	}, validationCtx())

	if result.IsValid {
		t.Fatal("axis-less scatter must be invalid")
	}
	if !strings.Contains(result.Errors, "xValueColumn") || !strings.Contains(result.Errors, "yValueColumn") {
		t.Errorf("errors %q should name both missing axes", result.Errors)
	}
}

func TestValidateAction_AggregatePlanRules(t *testing.T) {
	cases := []struct {
		name string
		plan AnalysisPlan
		want string // empty means valid
	}{
		{
			"valid sum",
			AnalysisPlan{ChartType: ChartTypeBar, Aggregation: AggregationSum, GroupByColumn: "Region", ValueColumn: "Sales"},
			"",
		},
		{
			"count without value column",
			AnalysisPlan{ChartType: ChartTypePie, Aggregation: AggregationCount, GroupByColumn: "Region"},
			"",
		},
		{
			"sum without value column",
			AnalysisPlan{ChartType: ChartTypeBar, Aggregation: AggregationSum, GroupByColumn: "Region"},
			"requires valueColumn",
		},
		{
			"missing groupBy",
			AnalysisPlan{ChartType: ChartTypeBar, Aggregation: AggregationSum, ValueColumn: "Sales"},
			"groupByColumn is required",
		},
		{
			"unknown aggregation",
			AnalysisPlan{ChartType: ChartTypeBar, Aggregation: "median", GroupByColumn: "Region", ValueColumn: "Sales"},
			"aggregation must be sum, count or avg",
		},
		{
			"missing chart type",
			AnalysisPlan{Aggregation: AggregationSum, GroupByColumn: "Region", ValueColumn: "Sales"},
			"chartType is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateAction(AiAction{
				Type: ActionPlanCreation, Thought: "chart it", Plan: &tc.plan,
			}, validationCtx())
			if tc.want == "" {
				if !result.IsValid {
					t.Errorf("expected valid, got %q", result.Errors)
				}
				return
			}
			if result.IsValid {
				t.Fatalf("expected invalid")
			}
			if !strings.Contains(result.Errors, tc.want) {
				t.Errorf("errors %q should contain %q", result.Errors, tc.want)
			}
		})
	}
}

func TestValidateAction_ComboRequiresSecondarySeries(t *testing.T) {
	result := ValidateAction(AiAction{
		Type:    ActionPlanCreation,
		Thought: "combo",
		Plan: &AnalysisPlan{
			ChartType:     ChartTypeCombo,
			Aggregation:   AggregationSum,
			GroupByColumn: "Region",
			ValueColumn:   "Sales",
		},
	}, validationCtx())

	if result.IsValid {
		t.Fatal("combo without secondary series must be invalid")
	}
	if !strings.Contains(result.Errors, "secondaryValueColumn") || !strings.Contains(result.Errors, "secondaryAggregation") {
		t.Errorf("errors %q should name both missing secondary fields", result.Errors)
	}
}

func TestValidateAction_DomActionUnknownCard(t *testing.T) {
	result := ValidateAction(AiAction{
		Type:    ActionDomAction,
		Thought: "hide it",
		DomAction: &DomActionPayload{
			ToolName: DomToolSetVisibility,
			Args:     DomActionArgs{CardID: "card-404"},
		},
	}, validationCtx("card-1"))

	if result.IsValid {
		t.Fatal("dom action on unknown card must be invalid")
	}
	if !strings.Contains(result.Errors, `cardId "card-404" does not exist`) {
		t.Errorf("errors %q should name the unknown id", result.Errors)
	}
}

func TestValidateAction_DomActionKnownCard(t *testing.T) {
	result := ValidateAction(AiAction{
		Type:    ActionDomAction,
		Thought: "hide it",
		DomAction: &DomActionPayload{
			ToolName: DomToolSetVisibility,
			Args:     DomActionArgs{CardID: "card-1"},
		},
	}, validationCtx("card-1"))
	if !result.IsValid {
		t.Errorf("expected valid, got %q", result.Errors)
	}
}

func TestValidateAction_CodeExecution(t *testing.T) {
	missing := ValidateAction(AiAction{
		Type: ActionExecuteJSCode, Thought: "transform",
		CodeExecution: &CodeExecutionPayload{},
	}, validationCtx())
	if missing.IsValid {
		t.Fatal("empty code execution must be invalid")
	}
	if !strings.Contains(missing.Errors, "explanation") || !strings.Contains(missing.Errors, "jsFunctionBody") {
		t.Errorf("errors %q should name both missing fields", missing.Errors)
	}

	// The body is validated for presence only; even a body that would throw
	// at runtime passes validation.
	broken := ValidateAction(AiAction{
		Type: ActionExecuteJSCode, Thought: "transform",
		CodeExecution: &CodeExecutionPayload{
			Explanation:    "double sales",
			JSFunctionBody: `throw new Error("only fails at runtime");`,
		},
	}, validationCtx())
	if !broken.IsValid {
		t.Errorf("validation must not execute the body, got %q", broken.Errors)
	}
}

func TestValidateAction_Filter(t *testing.T) {
	empty := ValidateAction(AiAction{
		Type: ActionFilterSpreadsheet, Thought: "clean",
		Filter: &FilterPayload{},
	}, validationCtx())
	if empty.IsValid {
		t.Fatal("filter without rules must be invalid")
	}

	vague := ValidateAction(AiAction{
		Type: ActionFilterSpreadsheet, Thought: "clean",
		Filter: &FilterPayload{Rules: []ExclusionRule{{Column: "Region"}}},
	}, validationCtx())
	if vague.IsValid {
		t.Fatal("rule without a match kind must be invalid")
	}

	ok := ValidateAction(AiAction{
		Type: ActionFilterSpreadsheet, Thought: "clean",
		Filter: &FilterPayload{Rules: []ExclusionRule{{Column: "Region", Contains: "total"}}},
	}, validationCtx())
	if !ok.IsValid {
		t.Errorf("expected valid, got %q", ok.Errors)
	}
}

func TestValidateAction_Clarification(t *testing.T) {
	ok := ValidateAction(AiAction{
		Type: ActionClarificationRequest, Thought: "ambiguous request",
		Clarification: &ClarificationPayload{
			Question:       "Which column should group the chart?",
			PartialPlan:    &AnalysisPlan{ChartType: ChartTypeBar, Aggregation: AggregationSum, ValueColumn: "Sales"},
			TargetProperty: "groupByColumn",
			Options:        []ClarificationOption{{Label: "Region", Value: "Region"}},
		},
	}, validationCtx())
	if !ok.IsValid {
		t.Fatalf("expected valid, got %q", ok.Errors)
	}

	bad := ValidateAction(AiAction{
		Type: ActionClarificationRequest, Thought: "ambiguous request",
		Clarification: &ClarificationPayload{
			Options: []ClarificationOption{{Label: "Region"}},
		},
	}, validationCtx())
	if bad.IsValid {
		t.Fatal("incomplete clarification must be invalid")
	}
	for _, want := range []string{"question", "partialPlan", "targetProperty", "label and value"} {
		if !strings.Contains(bad.Errors, want) {
			t.Errorf("errors %q should mention %s", bad.Errors, want)
		}
	}
}

func TestValidateAction_UnknownType(t *testing.T) {
	result := ValidateAction(AiAction{Type: "dance", Thought: "??"}, validationCtx())
	if result.IsValid {
		t.Fatal("unknown action type must be invalid")
	}
	if !strings.Contains(result.Errors, `unknown action type "dance"`) {
		t.Errorf("errors %q should name the type", result.Errors)
	}
}

func TestValidateActions_Batch(t *testing.T) {
	empty := ValidateActions(nil, validationCtx())
	if empty.IsValid {
		t.Fatal("empty batch must be invalid")
	}

	mixed := ValidateActions([]AiAction{
		{Type: ActionTextResponse, Thought: "ok", Text: "hello"},
		{Type: ActionTextResponse, Thought: "ok"},
	}, validationCtx())
	if mixed.IsValid {
		t.Fatal("batch with one invalid action must be invalid")
	}
	if !strings.Contains(mixed.Errors, "non-empty text") {
		t.Errorf("errors %q should carry the failing action's problem", mixed.Errors)
	}

	good := ValidateActions([]AiAction{
		{Type: ActionTextResponse, Thought: "ok", Text: "hello"},
		{Type: ActionTextResponse, Thought: "ok", Text: "world"},
	}, validationCtx())
	if !good.IsValid {
		t.Errorf("expected valid batch, got %q", good.Errors)
	}
}

func TestIsValidPlan(t *testing.T) {
	if !IsValidPlan(AnalysisPlan{ChartType: ChartTypeBar, Aggregation: AggregationCount, GroupByColumn: "Region"}) {
		t.Error("count plan without value column should be valid")
	}
	if IsValidPlan(AnalysisPlan{ChartType: ChartTypeScatter, XValueColumn: "X", YValueColumn: "Y", Aggregation: AggregationSum}) {
		t.Error("scatter with aggregation should be invalid")
	}
	if !IsValidPlan(AnalysisPlan{ChartType: ChartTypeScatter, XValueColumn: "X", YValueColumn: "Y"}) {
		t.Error("plain scatter should be valid")
	}
}

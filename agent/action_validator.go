package agent

import (
	"fmt"
	"strings"
)

// ValidationResult reports whether an action may be executed. Errors is a
// human-readable bullet list; its wording doubles as the self-correction
// feedback channel, so each bullet names the offending action and field.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Errors  string `json:"errors"`
}

// ValidationContext is the snapshot of application state an action is checked
// against. CardIDs holds the identifiers of currently live cards.
type ValidationContext struct {
	CardIDs map[string]bool
}

// ValidateAction checks a single proposed action against structural and
// referential rules. Pure function of the action and the context snapshot.
func ValidateAction(action AiAction, ctx ValidationContext) ValidationResult {
	var problems []string

	// Enforced uniformly: thoughts are surfaced as progress text and
	// requiring one pushes the model toward self-consistent reasoning.
	if strings.TrimSpace(action.Thought) == "" {
		problems = append(problems, "missing thought")
	}

	switch action.Type {
	case ActionTextResponse:
		if strings.TrimSpace(action.Text) == "" {
			problems = append(problems, "text_response requires non-empty text")
		}
	case ActionPlanCreation:
		problems = append(problems, planCreationProblems(action.Plan)...)
	case ActionDomAction:
		problems = append(problems, domActionProblems(action.DomAction, ctx)...)
	case ActionExecuteJSCode:
		problems = append(problems, codeExecutionProblems(action.CodeExecution)...)
	case ActionFilterSpreadsheet:
		problems = append(problems, filterProblems(action.Filter)...)
	case ActionClarificationRequest:
		problems = append(problems, clarificationProblems(action.Clarification)...)
	default:
		problems = append(problems, fmt.Sprintf("unknown action type %q", action.Type))
	}

	if len(problems) == 0 {
		return ValidationResult{IsValid: true}
	}

	var b strings.Builder
	for _, p := range problems {
		fmt.Fprintf(&b, "- [%s] %s\n", action.Title(), p)
	}
	return ValidationResult{IsValid: false, Errors: b.String()}
}

// ValidateActions checks a whole batch, accumulating every error. The batch
// is valid only when every action is.
func ValidateActions(actions []AiAction, ctx ValidationContext) ValidationResult {
	if len(actions) == 0 {
		return ValidationResult{IsValid: false, Errors: "- response contained no actions\n"}
	}

	var b strings.Builder
	valid := true
	for _, action := range actions {
		result := ValidateAction(action, ctx)
		if !result.IsValid {
			valid = false
			b.WriteString(result.Errors)
		}
	}
	return ValidationResult{IsValid: valid, Errors: b.String()}
}

// planProblems holds the structural rules shared with the plan generation
// pipeline's candidate filter.
func planProblems(plan *AnalysisPlan) []string {
	if plan == nil {
		return []string{"plan payload is missing"}
	}

	var problems []string
	switch plan.ChartType {
	case "":
		problems = append(problems, "chartType is required")
	case ChartTypeScatter:
		if plan.XValueColumn == "" {
			problems = append(problems, "scatter plots require xValueColumn")
		}
		if plan.YValueColumn == "" {
			problems = append(problems, "scatter plots require yValueColumn")
		}
		if plan.GroupByColumn != "" {
			problems = append(problems, "scatter plots must not provide groupByColumn")
		}
		if plan.Aggregation != "" {
			problems = append(problems, "scatter plots must not provide aggregation")
		}
	default:
		if plan.GroupByColumn == "" {
			problems = append(problems, "groupByColumn is required")
		}
		switch plan.Aggregation {
		case AggregationSum, AggregationAvg:
			if plan.ValueColumn == "" {
				problems = append(problems, fmt.Sprintf("aggregation %q requires valueColumn", plan.Aggregation))
			}
		case AggregationCount:
			// valueColumn optional
		default:
			problems = append(problems, fmt.Sprintf("aggregation must be sum, count or avg (got %q)", plan.Aggregation))
		}
	}
	return problems
}

// IsValidPlan reports whether a candidate plan is structurally sound. Used by
// the plan generation pipeline, which drops invalid candidates silently.
func IsValidPlan(plan AnalysisPlan) bool {
	return len(planProblems(&plan)) == 0
}

func planCreationProblems(plan *AnalysisPlan) []string {
	problems := planProblems(plan)
	if plan == nil {
		return problems
	}
	// Combo charts additionally need the full secondary series.
	if plan.ChartType == ChartTypeCombo {
		if plan.ValueColumn == "" {
			problems = append(problems, "combo charts require valueColumn")
		}
		if plan.Aggregation == "" {
			problems = append(problems, "combo charts require aggregation")
		}
		if plan.SecondaryValueColumn == "" {
			problems = append(problems, "combo charts require secondaryValueColumn")
		}
		if plan.SecondaryAggregation == "" {
			problems = append(problems, "combo charts require secondaryAggregation")
		}
	}
	return problems
}

func domActionProblems(payload *DomActionPayload, ctx ValidationContext) []string {
	if payload == nil {
		return []string{"dom_action payload is missing"}
	}

	var problems []string
	if payload.ToolName == "" {
		problems = append(problems, "toolName is required")
	}
	if payload.Args.CardID == "" {
		problems = append(problems, "args.cardId is required")
	} else if !ctx.CardIDs[payload.Args.CardID] {
		// Referential integrity against live UI state: the model may not
		// operate on stale or hallucinated identifiers.
		problems = append(problems, fmt.Sprintf("cardId %q does not exist", payload.Args.CardID))
	}
	return problems
}

func codeExecutionProblems(payload *CodeExecutionPayload) []string {
	if payload == nil {
		return []string{"execute_js_code payload is missing"}
	}

	var problems []string
	if strings.TrimSpace(payload.Explanation) == "" {
		problems = append(problems, "explanation is required")
	}
	// The body is not executed at validation time; execution happens only
	// after the whole batch validates, through the sandbox.
	if strings.TrimSpace(payload.JSFunctionBody) == "" {
		problems = append(problems, "jsFunctionBody is required")
	}
	return problems
}

func filterProblems(payload *FilterPayload) []string {
	if payload == nil {
		return []string{"filter_spreadsheet payload is missing"}
	}

	var problems []string
	if len(payload.Rules) == 0 {
		problems = append(problems, "at least one exclusion rule is required")
	}
	for i, rule := range payload.Rules {
		if rule.Column == "" {
			problems = append(problems, fmt.Sprintf("rule %d is missing a column", i))
		}
		if rule.Contains == "" && rule.Equals == "" && rule.StartsWith == "" {
			problems = append(problems, fmt.Sprintf("rule %d needs contains, equals or startsWith", i))
		}
	}
	return problems
}

func clarificationProblems(payload *ClarificationPayload) []string {
	if payload == nil {
		return []string{"clarification_request payload is missing"}
	}

	var problems []string
	if strings.TrimSpace(payload.Question) == "" {
		problems = append(problems, "question is required")
	}
	if payload.PartialPlan == nil {
		problems = append(problems, "partialPlan is required")
	}
	if payload.TargetProperty == "" {
		problems = append(problems, "targetProperty is required")
	}
	if len(payload.Options) == 0 {
		problems = append(problems, "at least one option is required")
	}
	for i, opt := range payload.Options {
		if opt.Label == "" || opt.Value == "" {
			problems = append(problems, fmt.Sprintf("option %d needs both label and value", i))
		}
	}
	return problems
}

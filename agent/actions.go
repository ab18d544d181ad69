package agent

import "encoding/json"

// ActionType tags the closed set of actions the model may propose.
type ActionType string

const (
	ActionTextResponse         ActionType = "text_response"
	ActionPlanCreation         ActionType = "plan_creation"
	ActionDomAction            ActionType = "dom_action"
	ActionExecuteJSCode        ActionType = "execute_js_code"
	ActionFilterSpreadsheet    ActionType = "filter_spreadsheet"
	ActionClarificationRequest ActionType = "clarification_request"
)

// DomActionArgs target a card and optionally carry new display state.
type DomActionArgs struct {
	CardID    string `json:"cardId"`
	ChartType string `json:"chartType,omitempty"`
	Visible   *bool  `json:"visible,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// DomActionPayload mutates the display state of an existing card or triggers
// a transient highlight.
type DomActionPayload struct {
	ToolName string        `json:"toolName"`
	Args     DomActionArgs `json:"args"`
}

// Dom tool names the orchestrator executes.
const (
	DomToolSetChartType  = "set_chart_type"
	DomToolSetVisibility = "set_visibility"
	DomToolSetFilter     = "set_filter"
	DomToolHighlight     = "highlight_card"
)

// CodeExecutionPayload carries a model-authored transform for the sandbox.
type CodeExecutionPayload struct {
	Explanation    string `json:"explanation"`
	JSFunctionBody string `json:"jsFunctionBody"`
}

// FilterPayload carries row-exclusion rules for the spreadsheet.
type FilterPayload struct {
	Explanation string          `json:"explanation,omitempty"`
	Rules       []ExclusionRule `json:"rules"`
}

// ClarificationOption is one answer the user can pick.
type ClarificationOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ClarificationPayload pauses the loop and asks the user to settle one
// property of a partially specified plan.
type ClarificationPayload struct {
	Question       string                `json:"question"`
	PartialPlan    *AnalysisPlan         `json:"partialPlan"`
	TargetProperty string                `json:"targetProperty"`
	Options        []ClarificationOption `json:"options"`
}

// AiAction is the tagged union of everything the model may propose. Exactly
// one payload field matching Type is populated. Every action carries a
// mandatory thought; the orchestrator surfaces thoughts as progress text.
type AiAction struct {
	Type    ActionType `json:"type"`
	Thought string     `json:"thought"`

	Text          string                `json:"text,omitempty"`
	Plan          *AnalysisPlan         `json:"plan,omitempty"`
	DomAction     *DomActionPayload     `json:"domAction,omitempty"`
	CodeExecution *CodeExecutionPayload `json:"codeExecution,omitempty"`
	Filter        *FilterPayload        `json:"filter,omitempty"`
	Clarification *ClarificationPayload `json:"clarification,omitempty"`
}

// Title names an action for error reporting: the plan title, tool name, or
// the action type when nothing better exists.
func (a AiAction) Title() string {
	switch {
	case a.Plan != nil && a.Plan.Title != "":
		return a.Plan.Title
	case a.DomAction != nil && a.DomAction.ToolName != "":
		return a.DomAction.ToolName
	default:
		return string(a.Type)
	}
}

// NormalizeActions reconstructs typed actions from the raw objects produced
// by defensive JSON parsing. Model output is duck-typed; nothing beyond the
// validator's explicit checks is trusted, but common shape drift is repaired
// here: a plan_creation whose plan fields sit at the top level instead of
// under "plan" is lifted into place.
func NormalizeActions(raw []map[string]interface{}) []AiAction {
	actions := make([]AiAction, 0, len(raw))
	for _, obj := range raw {
		var action AiAction
		encoded, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(encoded, &action); err != nil {
			continue
		}

		if action.Type == ActionPlanCreation && action.Plan == nil {
			if _, ok := obj["chartType"]; ok {
				var plan AnalysisPlan
				if err := json.Unmarshal(encoded, &plan); err == nil {
					action.Plan = &plan
				}
			}
		}
		actions = append(actions, action)
	}
	return actions
}

// DecodeActionsResponse parses a chat-turn model response shaped as
// {"actions": [...]} into typed actions.
func DecodeActionsResponse(content string) ([]AiAction, error) {
	raw, err := RobustlyParseJSONArray(content)
	if err != nil {
		return nil, err
	}
	return NormalizeActions(raw), nil
}

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt construction is kept in one place so the JSON contracts the parsers
// rely on stay next to the words that promise them.

const planCandidateSystemPrompt = `You are a data visualization planner. ` +
	`You propose chart plans for a tabular dataset. ` +
	`Respond ONLY with a JSON array of plan objects, no prose, no markdown fences. ` +
	`Each plan object has: chartType (bar|line|pie|doughnut|area|scatter|combo), title, description, ` +
	`and for aggregate charts: aggregation (sum|count|avg), groupByColumn, valueColumn (omit only when aggregation is count). ` +
	`Scatter plans have xValueColumn and yValueColumn and MUST omit aggregation and groupByColumn. ` +
	`Combo plans additionally have secondaryValueColumn and secondaryAggregation.`

// BuildPlanCandidatePrompt asks for n candidate plans given the column lists
// and a small row sample.
func BuildPlanCandidatePrompt(categorical, numerical []string, sample []Row, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose %d diverse, insightful chart plans for this dataset.\n\n", n)
	fmt.Fprintf(&b, "Categorical columns: %s\n", strings.Join(categorical, ", "))
	fmt.Fprintf(&b, "Numerical columns: %s\n\n", strings.Join(numerical, ", "))

	b.WriteString("Sample rows:\n")
	writeRowsJSON(&b, sample)

	b.WriteString("\nOnly reference columns that exist. Prefer groupings with moderate cardinality.")
	return b.String()
}

const qualityGateSystemPrompt = `You are a data visualization reviewer. ` +
	`You receive candidate chart plans together with the aggregated sample each plan produces. ` +
	`Select ONLY the genuinely insightful plans, discard redundant or trivial ones, ` +
	`and reconfigure the kept plans where useful (for example set topN to collapse long tails). ` +
	`Respond ONLY with a JSON array of the selected plan objects.`

// BuildQualityGatePrompt sends surviving candidates plus their aggregated
// samples back for the second-stage selection.
func BuildQualityGatePrompt(pairs []CandidateResult) string {
	var b strings.Builder
	b.WriteString("Candidate plans with the data they produce:\n\n")
	for i, pair := range pairs {
		planJSON, _ := json.Marshal(pair.Plan)
		fmt.Fprintf(&b, "%d. plan: %s\n", i+1, planJSON)
		sample := pair.Sample
		if len(sample) > 8 {
			sample = sample[:8]
		}
		sampleJSON, _ := json.Marshal(sample)
		fmt.Fprintf(&b, "   aggregated sample: %s\n\n", sampleJSON)
	}
	b.WriteString("Return the insightful subset as a JSON array of plan objects.")
	return b.String()
}

const prepPlanSystemPrompt = `You are a data preparation assistant. ` +
	`Given raw spreadsheet rows, decide whether a cleanup transformation is needed before analysis. ` +
	`Respond ONLY with a JSON object: {"explanation": string, "jsFunctionBody": string or null, "outputColumns": [{"name": string, "type": string}]}. ` +
	`jsFunctionBody, when not null, is the BODY of a JavaScript function taking one argument named data ` +
	`(an array of row objects) and it MUST contain a return statement returning an array of row objects. ` +
	`Use null for jsFunctionBody when the data is already analysis-ready.`

// BuildPrepPlanPrompt asks for a data preparation plan for a freshly loaded
// file.
func BuildPrepPlanPrompt(headers []string, sample []Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n\nSample rows:\n", strings.Join(headers, ", "))
	writeRowsJSON(&b, sample)
	b.WriteString("\nTypical cleanup: unpivot year/month columns, drop subtotal rows, split combined fields.")
	return b.String()
}

const chatSystemPrompt = `You are a data analysis agent operating a dashboard of chart cards. ` +
	`For every user message respond ONLY with a JSON object {"actions": [...]}. ` +
	`Every action has "type" and a non-empty "thought" explaining the step. Types:
- text_response: {"type","thought","text"}
- plan_creation: {"type","thought","plan": <chart plan object>}
- dom_action: {"type","thought","domAction":{"toolName":"set_chart_type|set_visibility|set_filter|highlight_card","args":{"cardId", ...}}}
- execute_js_code: {"type","thought","codeExecution":{"explanation","jsFunctionBody"}} (jsFunctionBody is a function body over argument data, MUST contain a return statement returning an array of row objects)
- filter_spreadsheet: {"type","thought","filter":{"explanation","rules":[{"column","contains|equals|startsWith"}]}}
- clarification_request: {"type","thought","clarification":{"question","partialPlan","targetProperty","options":[{"label","value"}]}}
Only reference cardId values listed in the context. Actions are executed in order.`

// TurnContext is everything the model is grounded on for one chat turn.
type TurnContext struct {
	Profiles       []ColumnProfile
	History        []ChatMessage
	Cards          []CardContext
	MemorySnippets []string
}

// BuildChatTurnPrompt renders the per-turn grounding context plus the user
// message.
func BuildChatTurnPrompt(ctx TurnContext, userMessage string) string {
	var b strings.Builder

	b.WriteString("## Column profiles\n")
	profilesJSON, _ := json.Marshal(ctx.Profiles)
	b.Write(profilesJSON)
	b.WriteString("\n\n## Current cards\n")
	if len(ctx.Cards) == 0 {
		b.WriteString("(none)\n")
	}
	for _, card := range ctx.Cards {
		cardJSON, _ := json.Marshal(card)
		b.Write(cardJSON)
		b.WriteString("\n")
	}

	if len(ctx.MemorySnippets) > 0 {
		b.WriteString("\n## Relevant memory\n")
		for _, snippet := range ctx.MemorySnippets {
			fmt.Fprintf(&b, "- %s\n", snippet)
		}
	}

	if len(ctx.History) > 0 {
		b.WriteString("\n## Recent conversation\n")
		for _, msg := range ctx.History {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	fmt.Fprintf(&b, "\n## User message\n%s\n", userMessage)
	return b.String()
}

// BuildCorrectiveFeedback appends the validation errors of a rejected batch
// so the model can repair its own output on the next attempt.
func BuildCorrectiveFeedback(userPrompt, errors string) string {
	var b strings.Builder
	b.WriteString(userPrompt)
	b.WriteString("\n\nYour last response failed. Fix these errors:\n")
	b.WriteString(errors)
	b.WriteString("\nRespond again with the full corrected {\"actions\": [...]} object.")
	return b.String()
}

func writeRowsJSON(b *strings.Builder, rows []Row) {
	for _, row := range rows {
		rowJSON, _ := json.Marshal(row)
		b.Write(rowJSON)
		b.WriteString("\n")
	}
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxTurnAttempts bounds the propose-validate-retry loop per user message.
	maxTurnAttempts = 3

	// historyWindow trims how much conversation is replayed into each prompt.
	historyWindow = 8

	// memoryTopK snippets are retrieved per turn.
	memoryTopK = 3

	// cardContextSampleSize bounds the per-card data sample handed to the
	// model as grounding context.
	cardContextSampleSize = 5
)

// SessionSnapshot is the serializable state emitted to the persistence
// collaborator on every state change.
type SessionSnapshot struct {
	SessionID string               `json:"sessionId"`
	Dataset   []Row                `json:"dataset"`
	Headers   []string             `json:"headers"`
	Profiles  []ColumnProfile      `json:"profiles"`
	PrepPlan  *DataPreparationPlan `json:"prepPlan,omitempty"`
	Cards     []AnalysisCard       `json:"cards"`
	History   []ChatMessage        `json:"history"`
}

// SnapshotSink is the persistence collaborator surface.
type SnapshotSink interface {
	SaveSnapshot(snapshot SessionSnapshot) error
}

// TurnResult is what one user message produced.
type TurnResult struct {
	// Messages are the assistant messages appended during the turn, in order.
	Messages []ChatMessage
	// AwaitingClarification is set when the turn paused for a user choice.
	AwaitingClarification *ClarificationPayload
	// Failed marks a terminal validation or execution failure. The failure
	// text is already in Messages; state was not rolled back.
	Failed bool
}

// Orchestrator owns the single source of truth for the analysis cards, chat
// history and dataset, and is the only writer of that state. Every other
// component is a pure function over snapshots it hands out. It drives the
// bounded-retry propose-validate-execute loop for each user message.
type Orchestrator struct {
	llm     ModelCaller
	sandbox *TransformSandbox
	memory  MemoryIndexer
	sink    SnapshotSink
	logger  func(string)

	mu        sync.Mutex
	sessionID string
	dataset   []Row
	headers   []string
	profiles  []ColumnProfile
	prepPlan  *DataPreparationPlan
	cards     []AnalysisCard
	history   []ChatMessage

	pendingClarification *ClarificationPayload
}

// NewOrchestrator wires the orchestrator. memory and sink may be nil when the
// collaborators are absent (tests, headless runs).
func NewOrchestrator(llm ModelCaller, sandbox *TransformSandbox, memory MemoryIndexer, sink SnapshotSink, logger func(string)) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		sandbox:   sandbox,
		memory:    memory,
		sink:      sink,
		logger:    logger,
		sessionID: uuid.New().String(),
	}
}

func (o *Orchestrator) log(msg string) {
	if o.logger != nil {
		o.logger(msg)
	}
}

// LoadDataset installs a prepared dataset as the session's source of truth.
func (o *Orchestrator) LoadDataset(rows []Row, headers []string, profiles []ColumnProfile, prepPlan *DataPreparationPlan) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dataset = rows
	o.headers = headers
	o.profiles = profiles
	o.prepPlan = prepPlan
	o.cards = nil
	o.pendingClarification = nil
	o.persistLocked()
}

// CreateCards materializes the given plans as cards, e.g. the initial
// dashboard produced by the plan generation pipeline.
func (o *Orchestrator) CreateCards(plans []AnalysisPlan) []AnalysisCard {
	o.mu.Lock()
	defer o.mu.Unlock()

	created := make([]AnalysisCard, 0, len(plans))
	for _, plan := range plans {
		card := o.materializeCardLocked(plan)
		created = append(created, card)
	}
	o.persistLocked()
	return created
}

// Cards returns a copy of the current card list.
func (o *Orchestrator) Cards() []AnalysisCard {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]AnalysisCard(nil), o.cards...)
}

// History returns a copy of the chat history.
func (o *Orchestrator) History() []ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ChatMessage(nil), o.history...)
}

// Snapshot returns the serializable session state.
func (o *Orchestrator) Snapshot() SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SubmitUserMessage runs one turn of the chat state machine, bounded at
// maxTurnAttempts model calls. If a clarification is pending, the message is
// consumed as its answer instead of starting a fresh turn.
func (o *Orchestrator) SubmitUserMessage(ctx context.Context, text string) (*TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.dataset) == 0 {
		return nil, errors.New("no dataset loaded")
	}

	o.appendMessageLocked("user", text, "")

	if o.pendingClarification != nil {
		return o.resolveClarificationLocked(text), nil
	}

	basePrompt := BuildChatTurnPrompt(o.turnContextLocked(text), text)
	prompt := basePrompt

	var lastErrors string
	for attempt := 1; attempt <= maxTurnAttempts; attempt++ {
		content, err := o.llm.GenerateJSON(ctx, chatSystemPrompt, prompt)
		if err != nil {
			// Transport failures were already retried inside the adapter.
			return nil, err
		}

		actions, err := DecodeActionsResponse(content)
		if err != nil {
			// Parse failure is terminal for the turn.
			return nil, err
		}

		result := ValidateActions(actions, o.validationContextLocked())
		if result.IsValid {
			turn := o.executeActionsLocked(actions)
			o.persistLocked()
			return turn, nil
		}

		lastErrors = result.Errors
		o.log(fmt.Sprintf("[ORCHESTRATOR] Attempt %d/%d rejected:\n%s", attempt, maxTurnAttempts, result.Errors))
		prompt = BuildCorrectiveFeedback(basePrompt, result.Errors)
	}

	// Attempts exhausted: degrade to a chat message, never roll back state.
	msg := o.appendMessageLocked("assistant",
		"I could not produce a valid set of actions for that request. Details:\n"+lastErrors, "")
	o.persistLocked()
	return &TurnResult{Messages: []ChatMessage{msg}, Failed: true}, nil
}

// executeActionsLocked applies a fully validated batch sequentially, in the
// order received. Later actions may depend on state mutated by earlier ones
// (a plan_creation followed by a dom_action highlighting the new card), so
// actions are never run concurrently. A clarification request halts the
// batch and returns control to the user.
func (o *Orchestrator) executeActionsLocked(actions []AiAction) *TurnResult {
	turn := &TurnResult{}

	for _, action := range actions {
		switch action.Type {
		case ActionTextResponse:
			msg := o.appendMessageLocked("assistant", action.Text, "")
			turn.Messages = append(turn.Messages, msg)

		case ActionPlanCreation:
			card := o.materializeCardLocked(*action.Plan)
			text := fmt.Sprintf("Created %q: %s", card.Plan.Title, card.Summary)
			msg := o.appendMessageLocked("assistant", text, card.ID)
			turn.Messages = append(turn.Messages, msg)

		case ActionDomAction:
			o.applyDomActionLocked(action.DomAction)

		case ActionExecuteJSCode:
			if err := o.applyTransformLocked(action.CodeExecution); err != nil {
				// Surfaced, not silently swallowed; earlier actions of the
				// batch stand and nothing is rolled back.
				msg := o.appendMessageLocked("assistant",
					"The data transformation failed: "+err.Error(), "")
				turn.Messages = append(turn.Messages, msg)
				turn.Failed = true
				return turn
			}
			msg := o.appendMessageLocked("assistant",
				action.CodeExecution.Explanation+" (dataset transformed, all charts recomputed)", "")
			turn.Messages = append(turn.Messages, msg)

		case ActionFilterSpreadsheet:
			kept, err := o.applyFilterLocked(action.Filter)
			if err != nil {
				msg := o.appendMessageLocked("assistant",
					"The filter was not applied: "+err.Error(), "")
				turn.Messages = append(turn.Messages, msg)
				turn.Failed = true
				return turn
			}
			msg := o.appendMessageLocked("assistant",
				fmt.Sprintf("Applied %d exclusion rule(s); %d rows remain.", len(action.Filter.Rules), kept), "")
			turn.Messages = append(turn.Messages, msg)

		case ActionClarificationRequest:
			o.pendingClarification = action.Clarification
			msg := o.appendMessageLocked("assistant", action.Clarification.Question, "")
			turn.Messages = append(turn.Messages, msg)
			turn.AwaitingClarification = action.Clarification
			return turn
		}
	}
	return turn
}

// materializeCardLocked runs a plan end-to-end against the current dataset
// and appends the resulting card. The orchestrator is the sole allocator of
// card identifiers.
func (o *Orchestrator) materializeCardLocked(plan AnalysisPlan) AnalysisCard {
	rows := ExecutePlan(o.dataset, plan)
	if plan.TopN > 0 {
		rows = ApplyTopNWithOthers(rows, plan.TopN, plan.GroupByColumn, o.valueColumnName(plan))
	}

	card := AnalysisCard{
		ID:      uuid.New().String(),
		Plan:    plan,
		Rows:    rows,
		Summary: describeAggregatedRows(rows, plan.GroupByColumn, o.valueColumnName(plan), 3),
	}
	o.cards = append(o.cards, card)

	if o.memory != nil {
		o.memory.IndexCard(card.ID, fmt.Sprintf("%s %s %s", plan.Title, plan.Description, card.Summary))
	}
	return card
}

func (o *Orchestrator) valueColumnName(plan AnalysisPlan) string {
	if plan.Aggregation == AggregationCount && plan.ValueColumn == "" {
		return "Count"
	}
	return plan.ValueColumn
}

func (o *Orchestrator) applyDomActionLocked(payload *DomActionPayload) {
	for i := range o.cards {
		if o.cards[i].ID != payload.Args.CardID {
			continue
		}
		switch payload.ToolName {
		case DomToolSetChartType:
			o.cards[i].DisplayChartType = payload.Args.ChartType
		case DomToolSetVisibility:
			if payload.Args.Visible != nil {
				o.cards[i].Hidden = !*payload.Args.Visible
			}
		case DomToolSetFilter:
			o.cards[i].Filter = payload.Args.Filter
		case DomToolHighlight:
			o.cards[i].Highlighted = true
		default:
			o.log(fmt.Sprintf("[ORCHESTRATOR] Unknown dom tool %q ignored", payload.ToolName))
		}
		return
	}
}

// applyTransformLocked runs a chat-time transform against the full dataset
// and, on success, replaces the dataset, re-profiles it and recomputes every
// card. Full recompute rather than incremental: this is a rare,
// user-triggered event.
func (o *Orchestrator) applyTransformLocked(payload *CodeExecutionPayload) error {
	transformed, err := o.sandbox.Run(payload.JSFunctionBody, o.dataset)
	if err != nil {
		return err
	}
	if len(transformed) == 0 {
		return &ExecutionError{Stage: "full-run", Message: "transform produced an empty dataset"}
	}

	o.replaceDatasetLocked(transformed)
	return nil
}

// applyFilterLocked drops matching rows and recomputes state. Rules matching
// the whole dataset are rejected with the previous dataset kept: an empty
// dataset would dead-end the session.
func (o *Orchestrator) applyFilterLocked(payload *FilterPayload) (int, error) {
	cleaned := CleanRows(o.dataset, payload.Rules)
	if len(cleaned) == 0 {
		return 0, errors.New("the exclusion rules match every row; the dataset was left unchanged")
	}
	o.replaceDatasetLocked(cleaned)
	return len(cleaned), nil
}

func (o *Orchestrator) replaceDatasetLocked(rows []Row) {
	o.dataset = rows
	o.headers = headersForRows(rows, o.profiles)
	o.profiles = ProfileColumns(rows, o.headers)
	for i := range o.cards {
		plan := o.cards[i].Plan
		recomputed := ExecutePlan(o.dataset, plan)
		if plan.TopN > 0 {
			recomputed = ApplyTopNWithOthers(recomputed, plan.TopN, plan.GroupByColumn, o.valueColumnName(plan))
		}
		o.cards[i].Rows = recomputed
		o.cards[i].Summary = describeAggregatedRows(recomputed, plan.GroupByColumn, o.valueColumnName(plan), 3)
	}
}

// resolveClarificationLocked consumes the user's follow-up as the answer to
// the requested target property and completes the pending plan. The next
// interaction answers the question that was asked, not a new idea.
func (o *Orchestrator) resolveClarificationLocked(answer string) *TurnResult {
	pending := o.pendingClarification
	o.pendingClarification = nil

	plan := *pending.PartialPlan
	applyClarificationAnswer(&plan, pending.TargetProperty, matchOptionValue(pending.Options, answer))

	turn := &TurnResult{}
	if !IsValidPlan(plan) {
		msg := o.appendMessageLocked("assistant",
			"That answer still leaves the chart incomplete: "+ValidateAction(AiAction{
				Type: ActionPlanCreation, Thought: "clarification", Plan: &plan,
			}, o.validationContextLocked()).Errors, "")
		turn.Messages = append(turn.Messages, msg)
		turn.Failed = true
	} else {
		card := o.materializeCardLocked(plan)
		msg := o.appendMessageLocked("assistant",
			fmt.Sprintf("Created %q: %s", plan.Title, card.Summary), card.ID)
		turn.Messages = append(turn.Messages, msg)
	}
	o.persistLocked()
	return turn
}

// matchOptionValue maps a free-text answer onto the offered option values,
// falling back to the raw answer.
func matchOptionValue(options []ClarificationOption, answer string) string {
	answer = strings.TrimSpace(answer)
	for _, opt := range options {
		if strings.EqualFold(opt.Label, answer) || strings.EqualFold(opt.Value, answer) {
			return opt.Value
		}
	}
	return answer
}

func applyClarificationAnswer(plan *AnalysisPlan, property, value string) {
	switch property {
	case "chartType":
		plan.ChartType = value
	case "aggregation":
		plan.Aggregation = value
	case "groupByColumn":
		plan.GroupByColumn = value
	case "valueColumn":
		plan.ValueColumn = value
	case "xValueColumn":
		plan.XValueColumn = value
	case "yValueColumn":
		plan.YValueColumn = value
	case "secondaryValueColumn":
		plan.SecondaryValueColumn = value
	case "secondaryAggregation":
		plan.SecondaryAggregation = value
	case "topN":
		if n, err := strconv.Atoi(value); err == nil {
			plan.TopN = n
		}
	}
}

func (o *Orchestrator) turnContextLocked(query string) TurnContext {
	history := o.history
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	cards := make([]CardContext, 0, len(o.cards))
	for _, card := range o.cards {
		sample := card.Rows
		if len(sample) > cardContextSampleSize {
			sample = sample[:cardContextSampleSize]
		}
		cards = append(cards, CardContext{
			ID:                   card.ID,
			Title:                card.Plan.Title,
			AggregatedDataSample: sample,
		})
	}

	var snippets []string
	if o.memory != nil {
		snippets = o.memory.Search(query, memoryTopK)
	}

	return TurnContext{
		Profiles:       o.profiles,
		History:        history,
		Cards:          cards,
		MemorySnippets: snippets,
	}
}

func (o *Orchestrator) validationContextLocked() ValidationContext {
	ids := make(map[string]bool, len(o.cards))
	for _, card := range o.cards {
		ids[card.ID] = true
	}
	return ValidationContext{CardIDs: ids}
}

func (o *Orchestrator) appendMessageLocked(role, content, cardID string) ChatMessage {
	msg := ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CardID:    cardID,
		Timestamp: time.Now().Unix(),
	}
	o.history = append(o.history, msg)
	return msg
}

func (o *Orchestrator) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		SessionID: o.sessionID,
		Dataset:   o.dataset,
		Headers:   o.headers,
		Profiles:  o.profiles,
		PrepPlan:  o.prepPlan,
		Cards:     o.cards,
		History:   o.history,
	}
}

func (o *Orchestrator) persistLocked() {
	if o.sink == nil {
		return
	}
	if err := o.sink.SaveSnapshot(o.snapshotLocked()); err != nil {
		o.log(fmt.Sprintf("[ORCHESTRATOR] Failed to persist snapshot: %v", err))
	}
}

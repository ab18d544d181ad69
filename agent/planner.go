package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Stage A candidate request size and the smaller size used by the
	// last-resort fallback call.
	candidateCount         = 12
	fallbackCandidateCount = 6

	// Final list bounds: backfill from Stage A up to the floor, cap the total.
	planFloor = 4
	planCap   = 12
)

// CandidateResult pairs a surviving candidate with the aggregated sample it
// produced, for the quality gate to judge.
type CandidateResult struct {
	Plan   AnalysisPlan
	Sample []AggregatedRow
}

// PlanGenerator runs the two-stage proposal pipeline: a candidate generation
// pass, then a quality gate that executes every candidate against sample data
// and asks the model to keep only the insightful subset. A single pass
// produces plans that are syntactically valid but not all insightful; the
// second pass is what filters the noise.
type PlanGenerator struct {
	llm    ModelCaller
	logger func(string)
}

// NewPlanGenerator creates a generator. logger may be nil.
func NewPlanGenerator(llm ModelCaller, logger func(string)) *PlanGenerator {
	return &PlanGenerator{llm: llm, logger: logger}
}

func (g *PlanGenerator) log(msg string) {
	if g.logger != nil {
		g.logger(msg)
	}
}

// GeneratePlans produces the initial dashboard plans for a dataset. If the
// two-stage pipeline fails outright it falls back to one simpler candidate
// call; if that also fails the error is terminal — no plans beat nonsensical
// plans.
func (g *PlanGenerator) GeneratePlans(ctx context.Context, profiles []ColumnProfile, sampleRows []Row) ([]AnalysisPlan, error) {
	plans, err := g.generateAndGate(ctx, profiles, sampleRows)
	if err == nil {
		return plans, nil
	}
	g.log(fmt.Sprintf("[PLANNER] Two-stage pipeline failed, falling back to simple generation: %v", err))

	categorical, numerical := SplitProfilesByKind(profiles)
	fallback, fbErr := g.generateCandidates(ctx, categorical, numerical, sampleRows, fallbackCandidateCount)
	if fbErr != nil {
		return nil, fmt.Errorf("plan generation failed: %w (fallback also failed: %v)", err, fbErr)
	}
	if len(fallback) > planCap {
		fallback = fallback[:planCap]
	}
	return fallback, nil
}

func (g *PlanGenerator) generateAndGate(ctx context.Context, profiles []ColumnProfile, sampleRows []Row) ([]AnalysisPlan, error) {
	categorical, numerical := SplitProfilesByKind(profiles)

	// Stage A: candidates.
	candidates, err := g.generateCandidates(ctx, categorical, numerical, sampleRows, candidateCount)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("model produced no structurally valid candidates")
	}

	// Execute every candidate against the sample; a plan aggregating to zero
	// rows cannot render and is non-viable, not an error.
	viable := make([]CandidateResult, 0, len(candidates))
	for _, plan := range candidates {
		rows := ExecutePlan(sampleRows, plan)
		if len(rows) == 0 {
			g.log(fmt.Sprintf("[PLANNER] Dropping non-viable candidate %q (zero groups)", plan.Title))
			continue
		}
		viable = append(viable, CandidateResult{Plan: plan, Sample: rows})
	}
	if len(viable) == 0 {
		return nil, fmt.Errorf("no candidate produced any aggregated rows")
	}

	// Stage B: quality gate.
	selected, err := g.runQualityGate(ctx, viable)
	if err != nil {
		return nil, err
	}

	// Backfill from Stage A order until the floor is met or candidates run
	// out, then cap.
	final := backfillPlans(selected, viable, planFloor)
	if len(final) > planCap {
		final = final[:planCap]
	}
	g.log(fmt.Sprintf("[PLANNER] Final plan list: %d (gate selected %d of %d viable)", len(final), len(selected), len(viable)))
	return final, nil
}

func (g *PlanGenerator) generateCandidates(ctx context.Context, categorical, numerical []string, sampleRows []Row, n int) ([]AnalysisPlan, error) {
	prompt := BuildPlanCandidatePrompt(categorical, numerical, SampleRows(sampleRows, 10), n)
	content, err := g.llm.GenerateJSON(ctx, planCandidateSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := RobustlyParseJSONArray(content)
	if err != nil {
		return nil, err
	}

	plans := make([]AnalysisPlan, 0, len(raw))
	for _, obj := range raw {
		plan, ok := decodePlanObject(obj)
		if !ok {
			continue
		}
		if !IsValidPlan(plan) {
			// Invalid candidates are dropped silently: logged, not surfaced.
			g.log(fmt.Sprintf("[PLANNER] Dropping invalid candidate: %s", strings.Join(planProblems(&plan), "; ")))
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (g *PlanGenerator) runQualityGate(ctx context.Context, viable []CandidateResult) ([]AnalysisPlan, error) {
	content, err := g.llm.GenerateJSON(ctx, qualityGateSystemPrompt, BuildQualityGatePrompt(viable))
	if err != nil {
		return nil, err
	}

	raw, err := RobustlyParseJSONArray(content)
	if err != nil {
		return nil, err
	}

	selected := make([]AnalysisPlan, 0, len(raw))
	for _, obj := range raw {
		plan, ok := decodePlanObject(obj)
		if !ok || !IsValidPlan(plan) {
			g.log("[PLANNER] Quality gate returned an invalid plan, skipping")
			continue
		}
		selected = append(selected, plan)
	}
	return selected, nil
}

// decodePlanObject reconstructs a plan from a raw object, unwrapping the
// nesting under a "plan" key the model sometimes adds.
func decodePlanObject(obj map[string]interface{}) (AnalysisPlan, bool) {
	if nested, ok := obj["plan"].(map[string]interface{}); ok {
		obj = nested
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return AnalysisPlan{}, false
	}
	var plan AnalysisPlan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return AnalysisPlan{}, false
	}
	return plan, true
}

// planKey identifies a plan by its structural fields, ignoring cosmetic ones.
func planKey(p AnalysisPlan) string {
	return strings.Join([]string{
		p.ChartType, p.Aggregation, p.GroupByColumn, p.ValueColumn,
		p.XValueColumn, p.YValueColumn, p.SecondaryValueColumn, p.SecondaryAggregation,
	}, "|")
}

// backfillPlans tops selected up to floor using not-yet-selected candidates in
// their Stage A order.
func backfillPlans(selected []AnalysisPlan, candidates []CandidateResult, floor int) []AnalysisPlan {
	taken := make(map[string]bool, len(selected))
	for _, p := range selected {
		taken[planKey(p)] = true
	}

	final := append([]AnalysisPlan(nil), selected...)
	for _, c := range candidates {
		if len(final) >= floor {
			break
		}
		if taken[planKey(c.Plan)] {
			continue
		}
		taken[planKey(c.Plan)] = true
		final = append(final, c.Plan)
	}
	return final
}

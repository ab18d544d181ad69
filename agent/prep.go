package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// DataPreparer generates and applies the one-time preparation plan for a
// freshly loaded file: the model inspects a sample, optionally authors a
// cleanup transform, and the sandbox gates that transform before it touches
// the dataset.
type DataPreparer struct {
	llm     ModelCaller
	sandbox *TransformSandbox
	logger  func(string)
}

// NewDataPreparer creates a preparer. logger may be nil.
func NewDataPreparer(llm ModelCaller, sandbox *TransformSandbox, logger func(string)) *DataPreparer {
	return &DataPreparer{llm: llm, sandbox: sandbox, logger: logger}
}

func (p *DataPreparer) log(msg string) {
	if p.logger != nil {
		p.logger(msg)
	}
}

// GeneratePreparationPlan asks the model for a preparation plan. The plan is
// generated once per uploaded file and never mutated after acceptance.
func (p *DataPreparer) GeneratePreparationPlan(ctx context.Context, headers []string, sample []Row) (*DataPreparationPlan, error) {
	content, err := p.llm.GenerateJSON(ctx, prepPlanSystemPrompt, BuildPrepPlanPrompt(headers, sample))
	if err != nil {
		return nil, err
	}

	obj, err := ParseJSONObject(content)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return nil, &ParseError{Excerpt: truncateForDiagnostics(content, 300), Err: err}
	}
	var plan DataPreparationPlan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil, &ParseError{Excerpt: truncateForDiagnostics(content, 300), Err: err}
	}
	return &plan, nil
}

// PrepareDataset runs the full prep flow: generate a plan, execute its
// transform through the sandbox, and on an execution failure re-prompt the
// model exactly once with the failure message as corrective feedback. An
// empty resulting dataset is a hard stop — prep failures are never silently
// swallowed.
func (p *DataPreparer) PrepareDataset(ctx context.Context, headers []string, rows []Row) (*DataPreparationPlan, []Row, []ColumnProfile, error) {
	sample := SampleRows(rows, 15)

	plan, err := p.GeneratePreparationPlan(ctx, headers, sample)
	if err != nil {
		return nil, nil, nil, err
	}

	prepared, err := p.applyTransform(plan.JSFunctionBody, rows)
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		p.log(fmt.Sprintf("[PREP] Transform failed, requesting correction: %s", execErr.Message))
		corrected, retryErr := p.regeneratePlan(ctx, headers, sample, plan, execErr)
		if retryErr != nil {
			return nil, nil, nil, fmt.Errorf("preparation transform failed and correction failed: %w", retryErr)
		}
		plan = corrected
		prepared, err = p.applyTransform(plan.JSFunctionBody, rows)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if len(prepared) == 0 {
		return nil, nil, nil, fmt.Errorf("preparation produced an empty dataset")
	}

	outHeaders := headersForRows(prepared, plan.OutputColumns)
	profiles := ProfileColumns(prepared, outHeaders)
	plan.OutputColumns = profiles
	return plan, prepared, profiles, nil
}

func (p *DataPreparer) applyTransform(body string, rows []Row) ([]Row, error) {
	if body == "" {
		// Identity transform.
		return rows, nil
	}
	return p.sandbox.Run(body, rows)
}

// regeneratePlan re-prompts with the execution failure appended, the single
// retry the prep path allows.
func (p *DataPreparer) regeneratePlan(ctx context.Context, headers []string, sample []Row, failed *DataPreparationPlan, execErr *ExecutionError) (*DataPreparationPlan, error) {
	prompt := BuildPrepPlanPrompt(headers, sample) +
		fmt.Sprintf("\n\nYour previous jsFunctionBody failed: %s\nPrevious body:\n%s\nReturn a corrected plan.",
			execErr.Message, failed.JSFunctionBody)

	content, err := p.llm.GenerateJSON(ctx, prepPlanSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	obj, err := ParseJSONObject(content)
	if err != nil {
		return nil, err
	}
	encoded, _ := json.Marshal(obj)
	var plan DataPreparationPlan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil, &ParseError{Excerpt: truncateForDiagnostics(content, 300), Err: err}
	}
	return &plan, nil
}

// headersForRows prefers the plan's declared output columns when they match
// the transformed rows, falling back to the sorted key set of the first row.
func headersForRows(rows []Row, declared []ColumnProfile) []string {
	if len(rows) == 0 {
		return nil
	}

	if len(declared) > 0 {
		all := true
		for _, col := range declared {
			if _, ok := rows[0][col.Name]; !ok {
				all = false
				break
			}
		}
		if all && len(declared) == len(rows[0]) {
			headers := make([]string, 0, len(declared))
			for _, col := range declared {
				headers = append(headers, col.Name)
			}
			return headers
		}
	}

	headers := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}

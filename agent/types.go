package agent

// Row is a single dataset record keyed by column header.
// Leaf values are strings or numbers as delivered by the intake collaborator.
type Row = map[string]interface{}

// ColumnType classifies a dataset column.
type ColumnType string

const (
	ColumnTypeNumerical   ColumnType = "numerical"
	ColumnTypeCategorical ColumnType = "categorical"
	ColumnTypeDate        ColumnType = "date"
	ColumnTypeTime        ColumnType = "time"
	ColumnTypeCurrency    ColumnType = "currency"
	ColumnTypePercentage  ColumnType = "percentage"
)

// IsNumericFamily reports whether values of this type carry a numeric magnitude
// after symbol stripping (plain numbers, currency amounts, percentages).
func (t ColumnType) IsNumericFamily() bool {
	return t == ColumnTypeNumerical || t == ColumnTypeCurrency || t == ColumnTypePercentage
}

// ColumnProfile describes one column of the current dataset version.
// Profiles are derived once per dataset version and never mutated; replacing or
// transforming the dataset produces a fresh slice of profiles.
type ColumnProfile struct {
	Name              string     `json:"name"`
	Type              ColumnType `json:"type"`
	UniqueValues      int        `json:"uniqueValues,omitempty"`
	ValueRange        []float64  `json:"valueRange,omitempty"` // [min, max] over parsed values
	MissingPercentage float64    `json:"missingPercentage"`
}

// Aggregation kinds supported by the aggregation engine.
const (
	AggregationSum   = "sum"
	AggregationCount = "count"
	AggregationAvg   = "avg"
)

// Chart types understood by the renderer collaborator.
const (
	ChartTypeBar      = "bar"
	ChartTypeLine     = "line"
	ChartTypePie      = "pie"
	ChartTypeDoughnut = "doughnut"
	ChartTypeArea     = "area"
	ChartTypeScatter  = "scatter"
	ChartTypeCombo    = "combo"
)

// AnalysisPlan is a declarative description of one chart. The populated fields
// depend on ChartType: aggregate charts use Aggregation/GroupByColumn/ValueColumn,
// scatter uses the two axis columns and nothing else, combo adds a secondary
// value column and aggregation on top of the aggregate-chart fields.
type AnalysisPlan struct {
	ChartType   string `json:"chartType"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Aggregation   string `json:"aggregation,omitempty"`
	GroupByColumn string `json:"groupByColumn,omitempty"`
	ValueColumn   string `json:"valueColumn,omitempty"`

	XValueColumn string `json:"xValueColumn,omitempty"`
	YValueColumn string `json:"yValueColumn,omitempty"`

	SecondaryValueColumn string `json:"secondaryValueColumn,omitempty"`
	SecondaryAggregation string `json:"secondaryAggregation,omitempty"`

	// TopN collapses the tail of the aggregated result into an "Others" row
	// when positive. Set by the quality gate or by chat actions.
	TopN int `json:"topN,omitempty"`
}

// AggregatedRow maps the group-key column name to the group label and the value
// column name to the numeric result. Rows are produced fresh per plan execution
// and never mutated afterwards.
type AggregatedRow = map[string]interface{}

// DataPreparationPlan is generated once per uploaded file and persisted with
// the session. An empty JSFunctionBody means the identity transform.
type DataPreparationPlan struct {
	Explanation    string          `json:"explanation"`
	JSFunctionBody string          `json:"jsFunctionBody"`
	OutputColumns  []ColumnProfile `json:"outputColumns"`
}

// ExclusionRule drops rows whose cell in Column matches the rule. Matching is
// case-insensitive; exactly one of Contains/Equals/StartsWith should be set.
type ExclusionRule struct {
	Column     string `json:"column"`
	Contains   string `json:"contains,omitempty"`
	Equals     string `json:"equals,omitempty"`
	StartsWith string `json:"startsWith,omitempty"`
}

// AnalysisCard is one rendered analysis: a plan plus its materialized rows and
// the display state the chat agent may mutate through dom actions.
type AnalysisCard struct {
	ID      string          `json:"id"`
	Plan    AnalysisPlan    `json:"plan"`
	Rows    []AggregatedRow `json:"rows"`
	Summary string          `json:"summary,omitempty"`

	DisplayChartType string `json:"displayChartType,omitempty"`
	Hidden           bool   `json:"hidden,omitempty"`
	Filter           string `json:"filter,omitempty"`
	Highlighted      bool   `json:"-"` // transient UI state, not persisted
}

// CardContext is the bounded read-only view of a card handed to the model as
// grounding context. Recomputed per chat turn.
type CardContext struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	AggregatedDataSample []AggregatedRow `json:"aggregatedDataSample"`
}

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	CardID    string `json:"cardId,omitempty"` // set when the message introduced a card
	Timestamp int64  `json:"timestamp"`
}

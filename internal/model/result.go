package model

// Classification is the remote service's verdict for one table region.
type Classification struct {
	EntityType EntityType    `json:"entityType"`
	Mapping    ColumnMapping `json:"columnMapping"`
	Confidence float64       `json:"confidence"`
	Usage      TokenUsage    `json:"-"`
}

// RegionAnalysis pairs a region with its classification.
type RegionAnalysis struct {
	Region         TableRegion
	Classification Classification
}

// TokenUsage tallies reasoning-service consumption for a run.
type TokenUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}

// Counts holds per-entity-type totals.
type Counts struct {
	Contracts   int `json:"contracts"`
	Receivables int `json:"receivables"`
	Expenses    int `json:"expenses"`
}

// Total returns the sum over all entity types.
func (c Counts) Total() int {
	return c.Contracts + c.Receivables + c.Expenses
}

// CreateReport summarises one persistence pass.
type CreateReport struct {
	Success bool     `json:"success"`
	Created Counts   `json:"created"`
	Errors  []string `json:"errors"`
}

// ImportResult is the user-visible outcome of importing one file.
type ImportResult struct {
	ImportID  string     `json:"import_id"`
	Filename  string     `json:"filename"`
	Kind      FileKind   `json:"kind"`
	Success   bool       `json:"success"`
	DryRun    bool       `json:"dry_run"`
	Regions   int        `json:"regions"`
	Batches   int        `json:"batches"`
	Extracted Counts     `json:"extracted"`
	Created   Counts     `json:"created"`
	Errors    []string   `json:"errors"`
	Warnings  []string   `json:"warnings"`
	Usage     TokenUsage `json:"usage"`
}

package model

import "time"

// ContractDraft is a contract as extracted, before inference.
type ContractDraft struct {
	ClientName  *string  `json:"clientName,omitempty"`
	ProjectName *string  `json:"projectName,omitempty"`
	TotalValue  *float64 `json:"totalValue,omitempty"`
	SignedDate  *Date    `json:"signedDate,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	Source      Source   `json:"-"`
}

// ReceivableDraft is a receivable as extracted, before inference.
type ReceivableDraft struct {
	ContractRef    *string  `json:"contractRef,omitempty"`
	ClientName     *string  `json:"clientName,omitempty"`
	ExpectedDate   *Date    `json:"expectedDate,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
	Status         *string  `json:"status,omitempty"`
	ReceivedDate   *Date    `json:"receivedDate,omitempty"`
	ReceivedAmount *float64 `json:"receivedAmount,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Category       *string  `json:"category,omitempty"`
	InvoiceNumber  *string  `json:"invoiceNumber,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	Source         Source   `json:"-"`
}

// ExpenseDraft is an expense as extracted, before inference.
type ExpenseDraft struct {
	Description   *string  `json:"description,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	DueDate       *Date    `json:"dueDate,omitempty"`
	Category      *string  `json:"category,omitempty"`
	Status        *string  `json:"status,omitempty"`
	PaidDate      *Date    `json:"paidDate,omitempty"`
	PaidAmount    *float64 `json:"paidAmount,omitempty"`
	Vendor        *string  `json:"vendor,omitempty"`
	InvoiceNumber *string  `json:"invoiceNumber,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Source        Source   `json:"-"`
}

// Drafts groups extracted drafts by entity type.
type Drafts struct {
	Contracts   []ContractDraft   `json:"contracts"`
	Receivables []ReceivableDraft `json:"receivables"`
	Expenses    []ExpenseDraft    `json:"expenses"`
}

// Len returns the total number of drafts.
func (d *Drafts) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Contracts) + len(d.Receivables) + len(d.Expenses)
}

// Merge appends other's drafts to d, keeping order.
func (d *Drafts) Merge(other *Drafts) {
	if other == nil {
		return
	}
	d.Contracts = append(d.Contracts, other.Contracts...)
	d.Receivables = append(d.Receivables, other.Receivables...)
	d.Expenses = append(d.Expenses, other.Expenses...)
}

// ProjectNames returns the non-empty project names of the contract drafts.
func (d *Drafts) ProjectNames() []string {
	var out []string
	for _, c := range d.Contracts {
		if c.ProjectName != nil && *c.ProjectName != "" {
			out = append(out, *c.ProjectName)
		}
	}
	return out
}

// ContractInput is a contract ready for persistence.
type ContractInput struct {
	ClientName  string   `json:"clientName"`
	ProjectName string   `json:"projectName"`
	TotalValue  *float64 `json:"totalValue,omitempty"`
	SignedDate  *Date    `json:"signedDate,omitempty"`
	Status      string   `json:"status"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	Source      Source   `json:"-"`
}

// ReceivableInput is a receivable ready for persistence. ContractID is set
// only when ContractRef resolved to a stored contract.
type ReceivableInput struct {
	ContractRef    *string  `json:"contractRef,omitempty"`
	ContractID     *string  `json:"contractId,omitempty"`
	ClientName     string   `json:"clientName"`
	ExpectedDate   Date     `json:"expectedDate"`
	Amount         float64  `json:"amount"`
	Status         string   `json:"status"`
	ReceivedDate   *Date    `json:"receivedDate,omitempty"`
	ReceivedAmount *float64 `json:"receivedAmount,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Category       *string  `json:"category,omitempty"`
	InvoiceNumber  *string  `json:"invoiceNumber,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	Source         Source   `json:"-"`
}

// ExpenseInput is an expense ready for persistence.
type ExpenseInput struct {
	Description   string   `json:"description"`
	Amount        float64  `json:"amount"`
	DueDate       Date     `json:"dueDate"`
	Category      string   `json:"category"`
	Status        string   `json:"status"`
	PaidDate      *Date    `json:"paidDate,omitempty"`
	PaidAmount    *float64 `json:"paidAmount,omitempty"`
	Vendor        *string  `json:"vendor,omitempty"`
	InvoiceNumber *string  `json:"invoiceNumber,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Source        Source   `json:"-"`
}

// RowIssue is a draft dropped or rejected with its reason.
type RowIssue struct {
	Entity EntityType `json:"entity"`
	Source Source     `json:"source"`
	Reason string     `json:"reason"`
}

func (i RowIssue) String() string {
	return i.Source.String() + ": " + i.Reason
}

// Finalized is the output of inference: entities ready for persistence plus
// the drafts that were dropped.
type Finalized struct {
	Contracts   []ContractInput   `json:"contracts"`
	Receivables []ReceivableInput `json:"receivables"`
	Expenses    []ExpenseInput    `json:"expenses"`
	Dropped     []RowIssue        `json:"dropped,omitempty"`
}

// Counts returns the per-type entity counts.
func (f *Finalized) Counts() Counts {
	return Counts{
		Contracts:   len(f.Contracts),
		Receivables: len(f.Receivables),
		Expenses:    len(f.Expenses),
	}
}

// Contract is a persisted contract.
type Contract struct {
	ID string `json:"id"`
	ContractInput
	CreatedAt time.Time `json:"createdAt"`
}

package transform

import (
	"strings"

	"github.com/joselpq/arqcashflow/internal/model"
)

// Placeholders used when inference has nothing better.
const (
	UnknownClient   = "Unknown client"
	DefaultCategory = "Other"
)

// PostProcessEntities fills defaults on a batch of drafts and drops the
// ones that cannot become valid entities. It never overwrites a value that
// is present and does not mutate its input; today anchors status inference.
func PostProcessEntities(batch *model.Drafts, today model.Date) model.Finalized {
	var out model.Finalized
	if batch == nil {
		return out
	}

	for _, d := range batch.Contracts {
		if c, reason := finalizeContract(d); reason != "" {
			out.Dropped = append(out.Dropped, model.RowIssue{Entity: model.EntityContract, Source: d.Source, Reason: reason})
		} else {
			out.Contracts = append(out.Contracts, c)
		}
	}
	for _, d := range batch.Receivables {
		if r, reason := finalizeReceivable(d, today); reason != "" {
			out.Dropped = append(out.Dropped, model.RowIssue{Entity: model.EntityReceivable, Source: d.Source, Reason: reason})
		} else {
			out.Receivables = append(out.Receivables, r)
		}
	}
	for _, d := range batch.Expenses {
		if e, reason := finalizeExpense(d, today); reason != "" {
			out.Dropped = append(out.Dropped, model.RowIssue{Entity: model.EntityExpense, Source: d.Source, Reason: reason})
		} else {
			out.Expenses = append(out.Expenses, e)
		}
	}
	return out
}

func finalizeContract(d model.ContractDraft) (model.ContractInput, string) {
	client, project := str(d.ClientName), str(d.ProjectName)
	if client == "" && project == "" {
		return model.ContractInput{}, "contract has neither client nor project name"
	}
	total := round(d.TotalValue)
	if total != nil && *total <= 0 {
		return model.ContractInput{}, "contract value must be positive"
	}
	if client == "" {
		client = project
	}
	if project == "" {
		project = client
	}

	c := model.ContractInput{
		ClientName:  client,
		ProjectName: project,
		TotalValue:  total,
		SignedDate:  d.SignedDate,
		Status:      model.StatusActive,
		Category:    d.Category,
		Description: d.Description,
		Notes:       d.Notes,
		Source:      d.Source,
	}
	if d.Status != nil {
		c.Status = *d.Status
	}
	return c, ""
}

func finalizeReceivable(d model.ReceivableDraft, today model.Date) (model.ReceivableInput, string) {
	amount := round(d.Amount)
	if amount == nil || *amount <= 0 {
		return model.ReceivableInput{}, "receivable has no positive amount"
	}

	r := model.ReceivableInput{
		ContractRef:    d.ContractRef,
		ExpectedDate:   today,
		Amount:         *amount,
		ReceivedDate:   d.ReceivedDate,
		ReceivedAmount: round(d.ReceivedAmount),
		Description:    d.Description,
		Category:       d.Category,
		InvoiceNumber:  d.InvoiceNumber,
		Notes:          d.Notes,
		Source:         d.Source,
	}
	if d.ExpectedDate != nil {
		r.ExpectedDate = *d.ExpectedDate
	}

	r.ClientName = firstNonEmpty(str(d.ClientName), str(d.ContractRef), str(d.Description), UnknownClient)

	switch {
	case d.Status != nil:
		r.Status = *d.Status
	case r.ExpectedDate.Before(today):
		r.Status = model.StatusReceived
	default:
		r.Status = model.StatusPending
	}

	if r.Status == model.StatusReceived {
		if r.ReceivedDate == nil {
			dt := r.ExpectedDate
			r.ReceivedDate = &dt
		}
		if r.ReceivedAmount == nil {
			amt := r.Amount
			r.ReceivedAmount = &amt
		}
	}
	return r, ""
}

func finalizeExpense(d model.ExpenseDraft, today model.Date) (model.ExpenseInput, string) {
	desc := str(d.Description)
	if desc == "" {
		return model.ExpenseInput{}, "expense has no description"
	}
	amount := round(d.Amount)
	if amount == nil || *amount <= 0 {
		return model.ExpenseInput{}, "expense has no positive amount"
	}

	e := model.ExpenseInput{
		Description:   desc,
		Amount:        *amount,
		DueDate:       today,
		Category:      firstNonEmpty(str(d.Category), DefaultCategory),
		PaidDate:      d.PaidDate,
		PaidAmount:    round(d.PaidAmount),
		Vendor:        d.Vendor,
		InvoiceNumber: d.InvoiceNumber,
		Notes:         d.Notes,
		Source:        d.Source,
	}
	if d.DueDate != nil {
		e.DueDate = *d.DueDate
	}

	switch {
	case d.Status != nil:
		e.Status = *d.Status
	case e.DueDate.Before(today):
		e.Status = model.StatusPaid
	default:
		e.Status = model.StatusPending
	}

	if e.Status == model.StatusPaid {
		if e.PaidDate == nil {
			dt := e.DueDate
			e.PaidDate = &dt
		}
		if e.PaidAmount == nil {
			amt := e.Amount
			e.PaidAmount = &amt
		}
	}
	return e, ""
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func round(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := Round2(*p)
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

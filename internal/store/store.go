package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/validate"
)

// Scope identifies the tenant an import writes into and the import run that
// audit rows are attributed to.
type Scope struct {
	TenantID string
	ImportID string
}

// Store is the persistence backend. All entity access goes through a
// tenant-scoped EntityStore.
type Store interface {
	Tenant(scope Scope) EntityStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// EntityStore persists entities for one tenant. Every create validates each
// row, rejects invalid ones individually and writes one audit row per
// created entity. Duplicate contracts are accepted.
type EntityStore interface {
	ListContracts(ctx context.Context) ([]model.Contract, error)
	CreateContracts(ctx context.Context, in []model.ContractInput) (*BulkResult, error)
	CreateReceivables(ctx context.Context, in []model.ReceivableInput) (*BulkResult, error)
	CreateExpenses(ctx context.Context, in []model.ExpenseInput) (*BulkResult, error)
	ListAudit(ctx context.Context) ([]AuditEntry, error)
}

// BulkResult reports the outcome of one bulk create.
type BulkResult struct {
	// IDs is parallel to the input; rejected rows have an empty ID.
	IDs      []string         `json:"ids"`
	Rejected []model.RowIssue `json:"rejected,omitempty"`
}

// Created returns the number of rows written.
func (r *BulkResult) Created() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, id := range r.IDs {
		if id != "" {
			n++
		}
	}
	return n
}

// AuditEntry is one row of the import audit trail.
type AuditEntry struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	EntityType model.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	Action     string           `json:"action"`
	ImportID   string           `json:"import_id"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ActionImport is the audit action recorded for entities created by an import.
const ActionImport = "import"

var (
	contractColumns = []string{
		"id", "tenant_id", "import_id", "client_name", "project_name", "total_value",
		"signed_date", "status", "category", "description", "notes", "created_at",
	}
	receivableColumns = []string{
		"id", "tenant_id", "import_id", "contract_id", "contract_ref", "client_name",
		"expected_date", "amount", "status", "received_date", "received_amount",
		"description", "category", "invoice_number", "notes", "created_at",
	}
	expenseColumns = []string{
		"id", "tenant_id", "import_id", "description", "amount", "due_date", "category",
		"status", "paid_date", "paid_amount", "vendor", "invoice_number", "notes", "created_at",
	}
	auditColumns = []string{
		"id", "tenant_id", "entity_type", "entity_id", "action", "import_id", "created_at",
	}
)

// dateCodec converts a calendar date into the driver's column value.
type dateCodec func(d model.Date) any

// opt dereferences an optional value so drivers see either NULL or a plain value.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func optDate(enc dateCodec, d *model.Date) any {
	if d == nil {
		return nil
	}
	return enc(*d)
}

// writeSet is a validated bulk create ready for a backend to write.
type writeSet struct {
	table   string
	columns []string
	rows    [][]any
	audit   [][]any
	result  *BulkResult
}

// plan validates inputs and assigns ids; values renders one accepted input.
func plan[T any](sc Scope, et model.EntityType, table string, columns []string, in []T,
	check func(T) error, source func(T) model.Source, values func(id string, v T, now time.Time) []any,
) *writeSet {
	now := time.Now().UTC()
	ws := &writeSet{
		table:   table,
		columns: columns,
		result:  &BulkResult{IDs: make([]string, len(in))},
	}
	for i, v := range in {
		if err := check(v); err != nil {
			ws.result.Rejected = append(ws.result.Rejected, model.RowIssue{
				Entity: et,
				Source: source(v),
				Reason: err.Error(),
			})
			continue
		}
		id := uuid.New().String()
		ws.result.IDs[i] = id
		ws.rows = append(ws.rows, values(id, v, now))
		ws.audit = append(ws.audit, []any{
			uuid.New().String(), sc.TenantID, string(et), id, ActionImport, sc.ImportID, now,
		})
	}
	return ws
}

func planContracts(v *validate.Validator, sc Scope, in []model.ContractInput, enc dateCodec) *writeSet {
	return plan(sc, model.EntityContract, "contracts", contractColumns, in,
		v.Contract,
		func(c model.ContractInput) model.Source { return c.Source },
		func(id string, c model.ContractInput, now time.Time) []any {
			return []any{
				id, sc.TenantID, sc.ImportID, c.ClientName, c.ProjectName, opt(c.TotalValue),
				optDate(enc, c.SignedDate), c.Status, opt(c.Category), opt(c.Description), opt(c.Notes), now,
			}
		})
}

func planReceivables(v *validate.Validator, sc Scope, in []model.ReceivableInput, enc dateCodec) *writeSet {
	return plan(sc, model.EntityReceivable, "receivables", receivableColumns, in,
		v.Receivable,
		func(r model.ReceivableInput) model.Source { return r.Source },
		func(id string, r model.ReceivableInput, now time.Time) []any {
			return []any{
				id, sc.TenantID, sc.ImportID, opt(r.ContractID), opt(r.ContractRef), r.ClientName,
				enc(r.ExpectedDate), r.Amount, r.Status, optDate(enc, r.ReceivedDate), opt(r.ReceivedAmount),
				opt(r.Description), opt(r.Category), opt(r.InvoiceNumber), opt(r.Notes), now,
			}
		})
}

func planExpenses(v *validate.Validator, sc Scope, in []model.ExpenseInput, enc dateCodec) *writeSet {
	return plan(sc, model.EntityExpense, "expenses", expenseColumns, in,
		v.Expense,
		func(e model.ExpenseInput) model.Source { return e.Source },
		func(id string, e model.ExpenseInput, now time.Time) []any {
			return []any{
				id, sc.TenantID, sc.ImportID, e.Description, e.Amount, enc(e.DueDate), e.Category,
				e.Status, optDate(enc, e.PaidDate), opt(e.PaidAmount), opt(e.Vendor), opt(e.InvoiceNumber), opt(e.Notes), now,
			}
		})
}

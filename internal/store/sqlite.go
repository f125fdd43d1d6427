package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/validate"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	validator *validate.Validator
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	v, err := validate.New()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single writer: receivables and expenses are written concurrently.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, validator: v}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	import_id    TEXT,
	client_name  TEXT NOT NULL,
	project_name TEXT NOT NULL,
	total_value  REAL,
	signed_date  TEXT,
	status       TEXT NOT NULL,
	category     TEXT,
	description  TEXT,
	notes        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS receivables (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	import_id       TEXT,
	contract_id     TEXT REFERENCES contracts(id),
	contract_ref    TEXT,
	client_name     TEXT NOT NULL,
	expected_date   TEXT NOT NULL,
	amount          REAL NOT NULL,
	status          TEXT NOT NULL,
	received_date   TEXT,
	received_amount REAL,
	description     TEXT,
	category        TEXT,
	invoice_number  TEXT,
	notes           TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS expenses (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	import_id      TEXT,
	description    TEXT NOT NULL,
	amount         REAL NOT NULL,
	due_date       TEXT NOT NULL,
	category       TEXT NOT NULL,
	status         TEXT NOT NULL,
	paid_date      TEXT,
	paid_amount    REAL,
	vendor         TEXT,
	invoice_number TEXT,
	notes          TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	import_id   TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contracts_tenant ON contracts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_receivables_tenant ON receivables(tenant_id);
CREATE INDEX IF NOT EXISTS idx_receivables_contract ON receivables(contract_id);
CREATE INDEX IF NOT EXISTS idx_expenses_tenant ON expenses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_import ON audit_log(tenant_id, import_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Tenant returns the entity store for one tenant.
func (s *SQLiteStore) Tenant(scope Scope) EntityStore {
	return &sqliteTenant{s: s, scope: scope}
}

func sqliteDate(d model.Date) any {
	return d.String()
}

// write inserts the rows and their audit entries in one transaction.
func (s *SQLiteStore) write(ctx context.Context, ws *writeSet) (*BulkResult, error) {
	if len(ws.rows) == 0 {
		return ws.result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: begin %s", ws.table)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertRows(ctx, tx, ws.table, ws.columns, ws.rows); err != nil {
		return nil, err
	}
	if err := insertRows(ctx, tx, "audit_log", auditColumns, ws.audit); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: commit %s", ws.table)
	}
	return ws.result, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", table)
		}
	}
	return nil
}

type sqliteTenant struct {
	s     *SQLiteStore
	scope Scope
}

func (t *sqliteTenant) ListContracts(ctx context.Context) ([]model.Contract, error) {
	rows, err := t.s.db.QueryContext(ctx,
		`SELECT id, client_name, project_name, total_value, signed_date, status, category, description, notes, created_at
		 FROM contracts WHERE tenant_id = ? ORDER BY created_at, rowid`,
		t.scope.TenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contracts")
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var (
			c                        model.Contract
			total                    sql.NullFloat64
			signed, cat, desc, notes sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ClientName, &c.ProjectName, &total, &signed, &c.Status,
			&cat, &desc, &notes, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contract")
		}
		if total.Valid {
			c.TotalValue = &total.Float64
		}
		if signed.Valid {
			d := model.Date(signed.String)
			c.SignedDate = &d
		}
		c.Category = nullString(cat)
		c.Description = nullString(desc)
		c.Notes = nullString(notes)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list contracts iterate")
}

func (t *sqliteTenant) CreateContracts(ctx context.Context, in []model.ContractInput) (*BulkResult, error) {
	return t.s.write(ctx, planContracts(t.s.validator, t.scope, in, sqliteDate))
}

func (t *sqliteTenant) CreateReceivables(ctx context.Context, in []model.ReceivableInput) (*BulkResult, error) {
	return t.s.write(ctx, planReceivables(t.s.validator, t.scope, in, sqliteDate))
}

func (t *sqliteTenant) CreateExpenses(ctx context.Context, in []model.ExpenseInput) (*BulkResult, error) {
	return t.s.write(ctx, planExpenses(t.s.validator, t.scope, in, sqliteDate))
}

func (t *sqliteTenant) ListAudit(ctx context.Context) ([]AuditEntry, error) {
	rows, err := t.s.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_type, entity_id, action, import_id, created_at
		 FROM audit_log WHERE tenant_id = ? AND import_id = ? ORDER BY created_at, rowid`,
		t.scope.TenantID, t.scope.ImportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			et string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &et, &e.EntityID, &e.Action, &e.ImportID, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		e.EntityType = model.EntityType(et)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time checks
var (
	_ Store       = (*SQLiteStore)(nil)
	_ EntityStore = (*sqliteTenant)(nil)
)

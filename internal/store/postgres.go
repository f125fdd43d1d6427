package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/joselpq/arqcashflow/internal/db"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/validate"
)

// PostgresStore implements Store using pgxpool. Bulk creates use COPY.
type PostgresStore struct {
	pool      db.Pool
	closeFn   func()
	validator *validate.Validator
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const listContractsSQL = `SELECT id, client_name, project_name, total_value, signed_date, status, category, description, notes, created_at
FROM contracts WHERE tenant_id = $1 ORDER BY created_at, id`

const listAuditSQL = `SELECT id, tenant_id, entity_type, entity_id, action, import_id, created_at
FROM audit_log WHERE tenant_id = $1 AND import_id = $2 ORDER BY created_at, id`

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"list_contracts": listContractsSQL,
	"list_audit":     listAuditSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	v, err := validate.New()
	if err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, validator: v}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	import_id    TEXT,
	client_name  TEXT NOT NULL,
	project_name TEXT NOT NULL,
	total_value  NUMERIC(14,2),
	signed_date  DATE,
	status       TEXT NOT NULL,
	category     TEXT,
	description  TEXT,
	notes        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS receivables (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	import_id       TEXT,
	contract_id     TEXT REFERENCES contracts(id),
	contract_ref    TEXT,
	client_name     TEXT NOT NULL,
	expected_date   DATE NOT NULL,
	amount          NUMERIC(14,2) NOT NULL,
	status          TEXT NOT NULL,
	received_date   DATE,
	received_amount NUMERIC(14,2),
	description     TEXT,
	category        TEXT,
	invoice_number  TEXT,
	notes           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS expenses (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	import_id      TEXT,
	description    TEXT NOT NULL,
	amount         NUMERIC(14,2) NOT NULL,
	due_date       DATE NOT NULL,
	category       TEXT NOT NULL,
	status         TEXT NOT NULL,
	paid_date      DATE,
	paid_amount    NUMERIC(14,2),
	vendor         TEXT,
	invoice_number TEXT,
	notes          TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	import_id   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contracts_tenant_project ON contracts(tenant_id, lower(project_name));
CREATE INDEX IF NOT EXISTS idx_receivables_tenant ON receivables(tenant_id);
CREATE INDEX IF NOT EXISTS idx_receivables_contract ON receivables(contract_id);
CREATE INDEX IF NOT EXISTS idx_expenses_tenant_due ON expenses(tenant_id, due_date);
CREATE INDEX IF NOT EXISTS idx_audit_log_import ON audit_log(tenant_id, import_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Tenant returns the entity store for one tenant.
func (s *PostgresStore) Tenant(scope Scope) EntityStore {
	return &postgresTenant{s: s, scope: scope}
}

// pgDate encodes a date as time.Time so COPY can use the binary DATE codec.
func pgDate(d model.Date) any {
	t, err := d.Time()
	if err != nil {
		return nil
	}
	return t
}

// write copies the rows and their audit entries in one transaction.
func (s *PostgresStore) write(ctx context.Context, ws *writeSet) (*BulkResult, error) {
	if len(ws.rows) == 0 {
		return ws.result, nil
	}

	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := db.CopyFrom(ctx, tx, ws.table, ws.columns, ws.rows); err != nil {
			return err
		}
		_, err := db.CopyFrom(ctx, tx, "audit_log", auditColumns, ws.audit)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create %s", ws.table)
	}
	return ws.result, nil
}

type postgresTenant struct {
	s     *PostgresStore
	scope Scope
}

func (t *postgresTenant) ListContracts(ctx context.Context) ([]model.Contract, error) {
	rows, err := t.s.pool.Query(ctx, listContractsSQL, t.scope.TenantID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contracts")
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var (
			c      model.Contract
			signed *time.Time
		)
		if err := rows.Scan(&c.ID, &c.ClientName, &c.ProjectName, &c.TotalValue, &signed, &c.Status,
			&c.Category, &c.Description, &c.Notes, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contract")
		}
		if signed != nil {
			d := model.NewDate(*signed)
			c.SignedDate = &d
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list contracts iterate")
}

func (t *postgresTenant) CreateContracts(ctx context.Context, in []model.ContractInput) (*BulkResult, error) {
	return t.s.write(ctx, planContracts(t.s.validator, t.scope, in, pgDate))
}

func (t *postgresTenant) CreateReceivables(ctx context.Context, in []model.ReceivableInput) (*BulkResult, error) {
	return t.s.write(ctx, planReceivables(t.s.validator, t.scope, in, pgDate))
}

func (t *postgresTenant) CreateExpenses(ctx context.Context, in []model.ExpenseInput) (*BulkResult, error) {
	return t.s.write(ctx, planExpenses(t.s.validator, t.scope, in, pgDate))
}

func (t *postgresTenant) ListAudit(ctx context.Context) ([]AuditEntry, error) {
	rows, err := t.s.pool.Query(ctx, listAuditSQL, t.scope.TenantID, t.scope.ImportID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			et string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &et, &e.EntityID, &e.Action, &e.ImportID, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		e.EntityType = model.EntityType(et)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

var (
	_ Store       = (*PostgresStore)(nil)
	_ EntityStore = (*postgresTenant)(nil)
)

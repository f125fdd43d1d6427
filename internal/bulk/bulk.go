// Package bulk persists finalized entities in dependency order: contracts
// first, then receivables and expenses concurrently.
package bulk

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/store"
)

// Creator writes one finalized batch through a tenant-scoped store.
type Creator struct {
	log *zap.Logger
}

// New returns a Creator.
func New() *Creator {
	return &Creator{log: zap.L().With(zap.String("component", "bulk"))}
}

// Create persists batch. Rejected rows become attributed error strings.
// Success is false only when a store call itself fails; the other entity
// types are still attempted.
func (c *Creator) Create(ctx context.Context, tenant store.EntityStore, batch model.Finalized) model.CreateReport {
	report := model.CreateReport{Success: true}

	index := contractIndex{}
	if len(batch.Receivables) > 0 {
		existing, err := tenant.ListContracts(ctx)
		if err != nil {
			c.log.Warn("bulk: list contracts failed, resolving against this run only", zap.Error(err))
			report.Errors = append(report.Errors, "contracts: list existing: "+err.Error())
		}
		for _, k := range existing {
			index.add(k.ProjectName, k.ID)
		}
	}

	if len(batch.Contracts) > 0 {
		res, err := tenant.CreateContracts(ctx, batch.Contracts)
		if err != nil {
			c.fail(&report, model.EntityContract, err)
		} else {
			report.Created.Contracts = res.Created()
			report.Errors = append(report.Errors, issues(res)...)
			for i, id := range res.IDs {
				if id != "" {
					index.add(batch.Contracts[i].ProjectName, id)
				}
			}
		}
	}

	receivables, resolved := index.resolve(batch.Receivables)
	if len(receivables) > 0 {
		c.log.Debug("bulk: resolved contract references",
			zap.Int("receivables", len(receivables)),
			zap.Int("resolved", resolved),
		)
	}

	var (
		recvRes, expRes *store.BulkResult
		recvErr, expErr error
		g               errgroup.Group
	)
	if len(receivables) > 0 {
		g.Go(func() error {
			recvRes, recvErr = tenant.CreateReceivables(ctx, receivables)
			return nil
		})
	}
	if len(batch.Expenses) > 0 {
		g.Go(func() error {
			expRes, expErr = tenant.CreateExpenses(ctx, batch.Expenses)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	if recvErr != nil {
		c.fail(&report, model.EntityReceivable, recvErr)
	} else if recvRes != nil {
		report.Created.Receivables = recvRes.Created()
		report.Errors = append(report.Errors, issues(recvRes)...)
	}
	if expErr != nil {
		c.fail(&report, model.EntityExpense, expErr)
	} else if expRes != nil {
		report.Created.Expenses = expRes.Created()
		report.Errors = append(report.Errors, issues(expRes)...)
	}

	c.log.Info("bulk: batch persisted",
		zap.Bool("success", report.Success),
		zap.Int("contracts", report.Created.Contracts),
		zap.Int("receivables", report.Created.Receivables),
		zap.Int("expenses", report.Created.Expenses),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

func (c *Creator) fail(report *model.CreateReport, et model.EntityType, err error) {
	c.log.Error("bulk: persistence failed", zap.String("entity", string(et)), zap.Error(err))
	report.Success = false
	report.Errors = append(report.Errors, string(et)+"s: "+err.Error())
}

func issues(res *store.BulkResult) []string {
	out := make([]string, 0, len(res.Rejected))
	for _, r := range res.Rejected {
		out = append(out, r.String())
	}
	return out
}

// contractIndex maps lower-cased project names to contract ids. Later
// additions win, so contracts created in this run shadow older duplicates.
type contractIndex map[string]string

func (ix contractIndex) add(project, id string) {
	key := indexKey(project)
	if key == "" {
		return
	}
	ix[key] = id
}

// resolve returns a copy of in with ContractID set wherever ContractRef
// names a known project. Unresolved references stay standalone.
func (ix contractIndex) resolve(in []model.ReceivableInput) ([]model.ReceivableInput, int) {
	if len(in) == 0 {
		return nil, 0
	}
	out := make([]model.ReceivableInput, len(in))
	resolved := 0
	for i, r := range in {
		r.ContractID = nil
		if r.ContractRef != nil {
			if id, ok := ix[indexKey(*r.ContractRef)]; ok {
				r.ContractID = &id
				resolved++
			}
		}
		out[i] = r
	}
	return out, resolved
}

func indexKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Package diagnostics detects parent orders whose stored status does not
// match the status derived from their sub-orders. A desync means the
// derivation failed to run atomically with some sub-order write; it is
// reported, never auto-corrected, so the underlying bug stays visible.
package diagnostics

import (
	"context"
	"fmt"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
)

// ParentWithSubs is the minimal slice of state the checker needs.
type ParentWithSubs struct {
	OrderNumber string
	Status      domain.ParentStatus
	Subs        []domain.SubStatus
}

// Desync is one stored/derived mismatch.
type Desync struct {
	OrderNumber string
	Stored      domain.ParentStatus
	Derived     domain.ParentStatus
	Subs        []domain.SubStatus
}

type Repo interface {
	ListOpenParents(ctx context.Context) ([]ParentWithSubs, error)
}

type Checker struct {
	repo Repo
	lg   *logger.Logger
}

func NewChecker(repo Repo, lg *logger.Logger) *Checker {
	return &Checker{repo: repo, lg: lg}
}

// Run recomputes every open parent's status and returns the mismatches.
func (c *Checker) Run(ctx context.Context) ([]Desync, error) {
	parents, err := c.repo.ListOpenParents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open parents: %w", err)
	}

	var out []Desync
	for _, p := range parents {
		derived := domain.DeriveParentStatus(p.Status, p.Subs)
		if derived == p.Status {
			continue
		}
		d := Desync{OrderNumber: p.OrderNumber, Stored: p.Status, Derived: derived, Subs: p.Subs}
		out = append(out, d)
		c.lg.Warn("status_desync_detected", map[string]any{
			"order_number": d.OrderNumber,
			"stored":       d.Stored,
			"derived":      d.Derived,
			"sub_statuses": d.Subs,
		})
	}

	c.lg.Info("desync_check_finished", map[string]any{
		"parents_checked": len(parents),
		"desyncs":         len(out),
	})
	return out, nil
}

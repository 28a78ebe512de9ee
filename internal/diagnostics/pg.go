package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"marketplace-system/internal/domain"
)

// PGRepo loads checker input straight from postgres.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db} }

// ListOpenParents returns every non-terminal parent with its sub-order
// statuses. Terminal parents are locked and cannot desync.
func (r *PGRepo) ListOpenParents(ctx context.Context) ([]ParentWithSubs, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.order_number, p.status,
		       COALESCE(array_to_string(array_agg(o.status ORDER BY o.order_number), ','), '')
		FROM parent_orders p
		LEFT JOIN orders o ON o.parent_order_id = p.id
		WHERE p.status NOT IN ($1,$2,$3)
		GROUP BY p.id, p.order_number, p.status
		ORDER BY p.created_at
	`, string(domain.ParentDelivered), string(domain.ParentCancelled), string(domain.ParentPartiallyCancelled))
	if err != nil {
		return nil, fmt.Errorf("select open parents: %w", err)
	}
	defer rows.Close()

	var out []ParentWithSubs
	for rows.Next() {
		var p ParentWithSubs
		var status, subsCSV string
		if err := rows.Scan(&p.OrderNumber, &status, &subsCSV); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		p.Status = domain.ParentStatus(status)
		p.Subs = splitStatuses(subsCSV)
		out = append(out, p)
	}
	return out, rows.Err()
}

func splitStatuses(csv string) []domain.SubStatus {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]domain.SubStatus, 0, len(parts))
	for _, p := range parts {
		out = append(out, domain.SubStatus(p))
	}
	return out
}

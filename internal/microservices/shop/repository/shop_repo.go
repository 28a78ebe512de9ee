package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-system/internal/domain"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrParentClosed      = errors.New("parent order is closed")
)

// TransitionResult captures what a sub-order status write did, for event
// publishing and logging after the transaction commits.
type TransitionResult struct {
	SubOrderNumber string
	ShopID         string
	SubOld, SubNew domain.SubStatus

	ParentOld, ParentNew domain.ParentStatus
	ParentBefore         domain.ParentOrderRecord
	ParentAfter          domain.ParentOrderRecord
}

type ShopRepositoryInterface interface {
	ListShopOrders(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error)
	UpdateSubOrderStatusTx(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus, changedBy string) (TransitionResult, error)
}

type ShopRepository struct {
	db *sql.DB
}

func NewShopRepository(db *sql.DB) *ShopRepository { return &ShopRepository{db: db} }

func (r *ShopRepository) ListShopOrders(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_number, parent_order_id, shop_id, status, subtotal, created_at, updated_at
		FROM orders
		WHERE shop_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, shopID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select shop orders: %w", err)
	}
	defer rows.Close()

	var out []domain.SubOrder
	for rows.Next() {
		var so domain.SubOrder
		var st string
		if err := rows.Scan(&so.ID, &so.OrderNumber, &so.ParentOrderID, &so.ShopID, &st, &so.Subtotal, &so.CreatedAt, &so.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sub-order: %w", err)
		}
		so.Status = domain.SubStatus(st)
		out = append(out, so)
	}
	return out, rows.Err()
}

// UpdateSubOrderStatusTx performs one sub-order transition and the
// parent-status derivation as a single atomic unit: the parent row is
// locked FOR UPDATE first, so two concurrent sibling updates serialize
// and each one derives from a consistent sibling snapshot. The parent
// status can never go stale relative to its sub-orders through this path.
func (r *ShopRepository) UpdateSubOrderStatusTx(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus, changedBy string) (TransitionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := TransitionResult{SubOrderNumber: subOrderNumber, ShopID: shopID, SubNew: to}

	// lock the parent before touching the sub-order
	var parentID string
	var parentStatus string
	before := &res.ParentBefore
	err = tx.QueryRowContext(ctx, `
		SELECT p.id, p.order_number, p.customer_name, p.status, p.delivery_user_id,
		       p.total, p.created_at, p.updated_at
		FROM parent_orders p
		JOIN orders o ON o.parent_order_id = p.id
		WHERE o.order_number=$1 AND o.shop_id=$2
		FOR UPDATE OF p
	`, subOrderNumber, shopID).Scan(&parentID, &before.OrderNumber, &before.CustomerName,
		&parentStatus, &before.DeliveryUserID, &before.Total, &before.CreatedAt, &before.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TransitionResult{}, ErrNotFound
	}
	if err != nil {
		return TransitionResult{}, fmt.Errorf("lock parent order: %w", err)
	}
	before.ID = parentID
	before.Status = domain.ParentStatus(parentStatus)
	res.ParentOld = before.Status

	if res.ParentOld.Terminal() {
		return TransitionResult{}, ErrParentClosed
	}

	var subID string
	var subStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT id, status FROM orders WHERE order_number=$1 AND shop_id=$2`,
		subOrderNumber, shopID,
	).Scan(&subID, &subStatus)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("select sub-order: %w", err)
	}
	res.SubOld = domain.SubStatus(subStatus)

	if !domain.ValidSubTransition(res.SubOld, to) {
		return TransitionResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, res.SubOld, to)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		subID, string(to)); err != nil {
		return TransitionResult{}, fmt.Errorf("update sub-order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1,$2,$3,now())
	`, subID, string(to), changedBy); err != nil {
		return TransitionResult{}, fmt.Errorf("insert sub-order status log: %w", err)
	}

	// re-read all sibling statuses post-write and derive the parent
	siblings, err := siblingStatuses(ctx, tx, parentID)
	if err != nil {
		return TransitionResult{}, err
	}
	res.ParentNew = domain.DeriveParentStatus(res.ParentOld, siblings)

	res.ParentAfter = *before
	if res.ParentNew != res.ParentOld {
		err = tx.QueryRowContext(ctx, `
			UPDATE parent_orders SET status=$2, updated_at=now() WHERE id=$1
			RETURNING updated_at
		`, parentID, string(res.ParentNew)).Scan(&res.ParentAfter.UpdatedAt)
		if err != nil {
			return TransitionResult{}, fmt.Errorf("update parent order: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_status_log (parent_order_id, status, changed_by, changed_at)
			VALUES ($1,$2,$3,now())
		`, parentID, string(res.ParentNew), changedBy); err != nil {
			return TransitionResult{}, fmt.Errorf("insert parent status log: %w", err)
		}
	}
	res.ParentAfter.Status = res.ParentNew

	if err := tx.Commit(); err != nil {
		return TransitionResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

func siblingStatuses(ctx context.Context, tx *sql.Tx, parentID string) ([]domain.SubStatus, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT status FROM orders WHERE parent_order_id=$1`, parentID)
	if err != nil {
		return nil, fmt.Errorf("select sibling statuses: %w", err)
	}
	defer rows.Close()

	var out []domain.SubStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan sibling status: %w", err)
		}
		out = append(out, domain.SubStatus(s))
	}
	return out, rows.Err()
}

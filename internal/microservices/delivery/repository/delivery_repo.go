package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-system/internal/domain"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrOrderTaken means the guarded claim matched zero rows: another
	// courier got there first, or the order left the ready state.
	ErrOrderTaken       = errors.New("order no longer available")
	ErrNotAssigned      = errors.New("order not assigned to this courier")
	ErrWrongParentState = errors.New("parent order not in the required state")
)

// DeliveredResult mirrors the shop-side transition result for the
// courier's delivered cascade.
type DeliveredResult struct {
	ParentOld, ParentNew domain.ParentStatus
	ParentBefore         domain.ParentOrderRecord
	ParentAfter          domain.ParentOrderRecord
}

type DeliveryRepositoryInterface interface {
	SnapshotReadyUnassigned(ctx context.Context) ([]domain.ParentOrderRecord, error)
	ClaimTx(ctx context.Context, orderNumber, courier string) (before, after domain.ParentOrderRecord, err error)
	MarkOutForDeliveryTx(ctx context.Context, orderNumber, courier string) (before, after domain.ParentOrderRecord, err error)
	MarkDeliveredTx(ctx context.Context, orderNumber, courier string) (DeliveredResult, error)

	RegisterCourier(ctx context.Context, name string) error
	SetCourierOffline(ctx context.Context, name string) error
	Heartbeat(ctx context.Context, name string) error
}

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository { return &DeliveryRepository{db: db} }

const parentRecordColumns = `id, order_number, customer_name, status, delivery_user_id, total, created_at, updated_at`

func scanParentRecord(row interface{ Scan(...any) error }) (domain.ParentOrderRecord, error) {
	var r domain.ParentOrderRecord
	var status string
	err := row.Scan(&r.ID, &r.OrderNumber, &r.CustomerName, &status, &r.DeliveryUserID, &r.Total, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.ParentOrderRecord{}, err
	}
	r.Status = domain.ParentStatus(status)
	return r, nil
}

// SnapshotReadyUnassigned is the projection's seed query: ready,
// unassigned parent orders, oldest first.
func (r *DeliveryRepository) SnapshotReadyUnassigned(ctx context.Context) ([]domain.ParentOrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+parentRecordColumns+`
		FROM parent_orders
		WHERE status=$1 AND delivery_user_id IS NULL
		ORDER BY created_at ASC
	`, string(domain.ParentReadyForPickup))
	if err != nil {
		return nil, fmt.Errorf("snapshot ready orders: %w", err)
	}
	defer rows.Close()

	var out []domain.ParentOrderRecord
	for rows.Next() {
		rec, err := scanParentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ready order: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClaimTx assigns the courier with a guarded conditional update: it only
// succeeds while the order is still ready and unassigned, so exactly one
// of two concurrent claims wins.
func (r *DeliveryRepository) ClaimTx(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	after, err := scanParentRecord(tx.QueryRowContext(ctx, `
		UPDATE parent_orders
		SET delivery_user_id=$2, updated_at=now()
		WHERE order_number=$1 AND status=$3 AND delivery_user_id IS NULL
		RETURNING `+parentRecordColumns, orderNumber, courier, string(domain.ParentReadyForPickup)))
	if errors.Is(err, sql.ErrNoRows) {
		// distinguish "taken" from "no such order" for the caller
		var exists bool
		if err2 := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM parent_orders WHERE order_number=$1)`, orderNumber,
		).Scan(&exists); err2 != nil {
			return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("check order exists: %w", err2)
		}
		if !exists {
			return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, ErrNotFound
		}
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, ErrOrderTaken
	}
	if err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("claim order: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE couriers SET last_seen=now() WHERE name=$1`, courier); err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("touch courier: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("commit transaction: %w", err)
	}

	before := after
	before.DeliveryUserID = nil
	return before, after, nil
}

// MarkOutForDeliveryTx is the courier's explicit pickup transition.
func (r *DeliveryRepository) MarkOutForDeliveryTx(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	after, err := scanParentRecord(tx.QueryRowContext(ctx, `
		UPDATE parent_orders
		SET status=$3, updated_at=now()
		WHERE order_number=$1 AND delivery_user_id=$2 AND status=$4
		RETURNING `+parentRecordColumns,
		orderNumber, courier, string(domain.ParentOutForDelivery), string(domain.ParentReadyForPickup)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, r.classifyTransitionFailure(ctx, tx, orderNumber, courier)
	}
	if err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("mark out for delivery: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_log (parent_order_id, status, changed_by, changed_at)
		VALUES ($1,$2,$3,now())
	`, after.ID, string(after.Status), "courier:"+courier); err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("insert parent status log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, fmt.Errorf("commit transaction: %w", err)
	}

	before := after
	before.Status = domain.ParentReadyForPickup
	return before, after, nil
}

// MarkDeliveredTx completes the delivery: every non-cancelled sub-order
// becomes DELIVERED and the parent is re-derived in the same transaction,
// yielding DELIVERED or PARTIALLY_CANCELLED when some shops had
// cancelled their portion.
func (r *DeliveryRepository) MarkDeliveredTx(ctx context.Context, orderNumber, courier string) (DeliveredResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return DeliveredResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := scanParentRecord(tx.QueryRowContext(ctx, `
		SELECT `+parentRecordColumns+`
		FROM parent_orders WHERE order_number=$1
		FOR UPDATE
	`, orderNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return DeliveredResult{}, ErrNotFound
	}
	if err != nil {
		return DeliveredResult{}, fmt.Errorf("lock parent order: %w", err)
	}
	if before.DeliveryUserID == nil || *before.DeliveryUserID != courier {
		return DeliveredResult{}, ErrNotAssigned
	}
	if before.Status != domain.ParentOutForDelivery {
		return DeliveredResult{}, fmt.Errorf("%w: %s", ErrWrongParentState, before.Status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE parent_order_id=$1 AND status NOT IN ($2,$3)
	`, before.ID, string(domain.SubDelivered), string(domain.SubCancelled)); err != nil {
		return DeliveredResult{}, fmt.Errorf("deliver sub-orders: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT status FROM orders WHERE parent_order_id=$1`, before.ID)
	if err != nil {
		return DeliveredResult{}, fmt.Errorf("select sibling statuses: %w", err)
	}
	var subs []domain.SubStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return DeliveredResult{}, fmt.Errorf("scan sibling status: %w", err)
		}
		subs = append(subs, domain.SubStatus(s))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DeliveredResult{}, err
	}

	res := DeliveredResult{ParentOld: before.Status, ParentBefore: before}
	res.ParentNew = domain.DeriveParentStatus(before.Status, subs)

	res.ParentAfter = before
	res.ParentAfter.Status = res.ParentNew
	if res.ParentNew != res.ParentOld {
		err = tx.QueryRowContext(ctx, `
			UPDATE parent_orders SET status=$2, updated_at=now() WHERE id=$1
			RETURNING updated_at
		`, before.ID, string(res.ParentNew)).Scan(&res.ParentAfter.UpdatedAt)
		if err != nil {
			return DeliveredResult{}, fmt.Errorf("update parent order: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_status_log (parent_order_id, status, changed_by, changed_at)
			VALUES ($1,$2,$3,now())
		`, before.ID, string(res.ParentNew), "courier:"+courier); err != nil {
			return DeliveredResult{}, fmt.Errorf("insert parent status log: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE couriers SET orders_delivered = orders_delivered + 1, last_seen=now()
		WHERE name=$1
	`, courier); err != nil {
		return DeliveredResult{}, fmt.Errorf("update courier counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DeliveredResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

func (r *DeliveryRepository) classifyTransitionFailure(ctx context.Context, tx *sql.Tx, orderNumber, courier string) error {
	var assigned sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT delivery_user_id FROM parent_orders WHERE order_number=$1`, orderNumber,
	).Scan(&assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect order: %w", err)
	}
	if !assigned.Valid || assigned.String != courier {
		return ErrNotAssigned
	}
	return ErrWrongParentState
}

func (r *DeliveryRepository) RegisterCourier(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO couriers (name, status, last_seen)
		VALUES ($1, 'online', now())
		ON CONFLICT (name) DO UPDATE SET status='online', last_seen=now()
	`, name)
	return err
}

func (r *DeliveryRepository) SetCourierOffline(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE couriers SET status='offline', last_seen=now() WHERE name=$1`, name)
	return err
}

func (r *DeliveryRepository) Heartbeat(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE couriers SET last_seen=now() WHERE name=$1`, name)
	return err
}

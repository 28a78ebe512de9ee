package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketplace-system/internal/domain"
)

var ErrNotFound = errors.New("order not found")

type CheckoutRepositoryInterface interface {
	NextOrderSequence(ctx context.Context) (int, error)
	CreateParentOrderTx(ctx context.Context, p *domain.ParentOrder) error
	GetParentOrder(ctx context.Context, orderNumber string) (domain.ParentOrder, error)
}

type CheckoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(db *sql.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// NextOrderSequence returns today's next human-readable order sequence.
func (r *CheckoutRepository) NextOrderSequence(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parent_orders WHERE created_at::date = CURRENT_DATE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's orders: %w", err)
	}
	return count + 1, nil
}

// CreateParentOrderTx persists the parent order, its sub-orders, their
// items and the initial status log rows in a single transaction.
func (r *CheckoutRepository) CreateParentOrderTx(ctx context.Context, p *domain.ParentOrder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO parent_orders
			(id, order_number, customer_name, delivery_address, status, delivery_user_id,
			 subtotal, total_delivery_fee, total, route_km, pickup_sequence, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,$8,$9,$10,now(),now())
		RETURNING created_at, updated_at
	`, p.ID, p.OrderNumber, p.CustomerName, p.DeliveryAddress, string(p.Status),
		p.Subtotal, p.TotalDeliveryFee, p.Total, p.RouteKm, pgTextArray(p.PickupSequence),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert parent order: %w", err)
	}

	for i := range p.SubOrders {
		so := &p.SubOrders[i]
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (id, order_number, parent_order_id, shop_id, status, subtotal, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,now(),now())
			RETURNING created_at, updated_at
		`, so.ID, so.OrderNumber, p.ID, so.ShopID, string(so.Status), so.Subtotal,
		).Scan(&so.CreatedAt, &so.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert sub-order for shop %s: %w", so.ShopID, err)
		}
		for _, item := range so.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, name, quantity, price, created_at)
				VALUES ($1,$2,$3,$4,now())
			`, so.ID, item.Name, item.Quantity, item.Price); err != nil {
				return fmt.Errorf("insert order item %s: %w", item.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
			VALUES ($1,$2,'checkout-service',now())
		`, so.ID, string(so.Status)); err != nil {
			return fmt.Errorf("insert sub-order status log: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_log (parent_order_id, status, changed_by, changed_at)
		VALUES ($1,$2,'checkout-service',now())
	`, p.ID, string(p.Status)); err != nil {
		return fmt.Errorf("insert parent status log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetParentOrder loads a parent order with its nested sub-orders.
func (r *CheckoutRepository) GetParentOrder(ctx context.Context, orderNumber string) (domain.ParentOrder, error) {
	var p domain.ParentOrder
	var status string
	var pickupSeq sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_name, delivery_address, status, delivery_user_id,
		       subtotal, total_delivery_fee, total, route_km,
		       array_to_string(pickup_sequence, ','), created_at, updated_at
		FROM parent_orders WHERE order_number=$1
	`, orderNumber).Scan(&p.ID, &p.OrderNumber, &p.CustomerName, &p.DeliveryAddress, &status, &p.DeliveryUserID,
		&p.Subtotal, &p.TotalDeliveryFee, &p.Total, &p.RouteKm, &pickupSeq, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParentOrder{}, ErrNotFound
	}
	if err != nil {
		return domain.ParentOrder{}, fmt.Errorf("select parent order: %w", err)
	}
	p.Status = domain.ParentStatus(status)
	if pickupSeq.Valid && pickupSeq.String != "" {
		p.PickupSequence = strings.Split(pickupSeq.String, ",")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_number, shop_id, status, subtotal, created_at, updated_at
		FROM orders WHERE parent_order_id=$1
		ORDER BY order_number
	`, p.ID)
	if err != nil {
		return domain.ParentOrder{}, fmt.Errorf("select sub-orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var so domain.SubOrder
		var st string
		if err := rows.Scan(&so.ID, &so.OrderNumber, &so.ShopID, &st, &so.Subtotal, &so.CreatedAt, &so.UpdatedAt); err != nil {
			return domain.ParentOrder{}, fmt.Errorf("scan sub-order: %w", err)
		}
		so.Status = domain.SubStatus(st)
		so.ParentOrderID = p.ID
		p.SubOrders = append(p.SubOrders, so)
	}
	if err := rows.Err(); err != nil {
		return domain.ParentOrder{}, err
	}
	return p, nil
}

// pgTextArray renders a text[] literal; pickup_sequence is a small list
// of shop ids so the simple form is enough.
func pgTextArray(items []string) any {
	if items == nil {
		return nil
	}
	out := "{"
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "}"
}

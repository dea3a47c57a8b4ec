package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// Create persists the order, its items and the first status history
// entry in one transaction. The order must come out of Machine.NewOrder.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, seller_id, status, total_cents, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.BuyerID, o.SellerID, string(o.Status), o.TotalCents, o.ShippingAddress, string(o.PaymentMethod), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, sc := range o.StatusHistory {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_status_history(order_id, status, notes, created_at)
			VALUES ($1,$2,$3,$4)`,
			o.ID, string(sc.Status), sc.Notes, sc.At,
		); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	var status, payment string
	err := r.DB.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, status, total_cents, COALESCE(shipping_address,''), payment_method,
		       estimated_delivery, actual_delivery, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.BuyerID, &o.SellerID, &status, &o.TotalCents, &o.ShippingAddress, &payment,
			&o.EstimatedDelivery, &o.ActualDelivery, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(payment)

	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.StatusHistory, err = r.history(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders newest first, items attached.
func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, buyer_id, seller_id, status, total_cents, COALESCE(shipping_address,''), payment_method,
		       estimated_delivery, actual_delivery, created_at, updated_at
		FROM orders WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var status, payment string
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.SellerID, &status, &o.TotalCents, &o.ShippingAddress, &payment,
			&o.EstimatedDelivery, &o.ActualDelivery, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		o.PaymentMethod = PaymentMethod(payment)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = r.items(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatus persists the status fields mutated by a Transition call
// plus its newly appended history entry.
func (r *Repo) UpdateStatus(ctx context.Context, o *Order) error {
	if len(o.StatusHistory) == 0 {
		return fmt.Errorf("order %s has no status history", o.ID)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, estimated_delivery=$3, actual_delivery=$4, updated_at=$5
		WHERE id=$1`,
		o.ID, string(o.Status), o.EstimatedDelivery, o.ActualDelivery, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}

	last := o.StatusHistory[len(o.StatusHistory)-1]
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(order_id, status, notes, created_at)
		VALUES ($1,$2,$3,$4)`,
		o.ID, string(last.Status), last.Notes, last.At,
	); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.qty, oi.price_cents
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) history(ctx context.Context, orderID string) ([]StatusChange, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, COALESCE(notes,''), created_at
		FROM order_status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var sc StatusChange
		var status string
		if err := rows.Scan(&status, &sc.Notes, &sc.At); err != nil {
			return nil, err
		}
		sc.Status = Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

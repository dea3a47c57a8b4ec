// Package inventory is the sole authority over a product's on-hand
// count and its stock_history audit trail. Every mutation is an atomic
// conditional write plus exactly one audit row.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
)

type Store struct{ DB *pgxpool.Pool }

func (s *Store) GetProduct(ctx context.Context, productID string) (*orders.Product, error) {
	var p orders.Product
	var txRef *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, seller_id, name, price_cents, count_in_stock, ledger_managed, ledger_last_tx_ref, created_at, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.CountInStock, &p.LedgerManaged, &txRef, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if txRef != nil {
		p.LedgerLastTxRef = *txRef
	}
	return &p, nil
}

// ResolveSeller maps a SellerRef to the canonical seller id.
func (s *Store) ResolveSeller(ctx context.Context, ref orders.SellerRef) (string, error) {
	if ref.IsZero() {
		return "", orders.Invalid("seller is required")
	}
	var row pgx.Row
	if id, ok := ref.ByID(); ok {
		row = s.DB.QueryRow(ctx, `SELECT id FROM sellers WHERE id=$1`, id)
	} else {
		name, _ := ref.ByName()
		row = s.DB.QueryRow(ctx, `SELECT id FROM sellers WHERE name=$1`, name)
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", orders.ErrSellerNotFound
		}
		return "", err
	}
	return id, nil
}

// Reserve atomically decrements stock iff enough is available. The
// test-and-decrement is a single conditional UPDATE, so two concurrent
// reservations can never both succeed past the available amount.
func (s *Store) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newCount, err := reserveOne(ctx, tx, productID, qty)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}

// ReserveAll decrements stock for every item inside one transaction.
// If any single item falls short, nothing is committed.
func (s *Store) ReserveAll(ctx context.Context, items []orders.ItemQty) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		if _, err := reserveOne(ctx, tx, it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func reserveOne(ctx context.Context, tx pgx.Tx, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, orders.Invalid("invalid qty %d for product %s", qty, productID)
	}
	var newCount int
	err := tx.QueryRow(ctx, `
		UPDATE products SET count_in_stock = count_in_stock - $2, updated_at = NOW()
		WHERE id=$1 AND count_in_stock >= $2
		RETURNING count_in_stock`, productID, qty).Scan(&newCount)
	if errors.Is(err, pgx.ErrNoRows) {
		// either unknown product or not enough stock; look once to tell apart
		var available int
		err2 := tx.QueryRow(ctx, `SELECT count_in_stock FROM products WHERE id=$1`, productID).Scan(&available)
		if errors.Is(err2, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
		}
		if err2 != nil {
			return 0, err2
		}
		return 0, &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	if err != nil {
		return 0, err
	}
	if err := appendHistory(ctx, tx, productID, newCount+qty, newCount, ""); err != nil {
		return 0, err
	}
	return newCount, nil
}

// Restore atomically increments stock. No upper bound is enforced.
func (s *Store) Restore(ctx context.Context, productID string, qty int) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var newCount int
	err = tx.QueryRow(ctx, `
		UPDATE products SET count_in_stock = count_in_stock + $2, updated_at = NOW()
		WHERE id=$1
		RETURNING count_in_stock`, productID, qty).Scan(&newCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, err
	}
	if err := appendHistory(ctx, tx, productID, newCount-qty, newCount, ""); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}

// GetStock is an advisory snapshot; in-flight reservations may land
// before or after it.
func (s *Store) GetStock(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT count_in_stock FROM products WHERE id=$1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	return n, err
}

// SetStock is the admin correction path: absolute set plus audit row.
func (s *Store) SetStock(ctx context.Context, productID string, newStock int, txRef string) (int, error) {
	if newStock < 0 {
		return 0, orders.Invalid("stock must be >= 0")
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev int
	err = tx.QueryRow(ctx, `SELECT count_in_stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products SET count_in_stock=$2, ledger_last_tx_ref=COALESCE(NULLIF($3,''), ledger_last_tx_ref), updated_at=NOW()
		WHERE id=$1`, productID, newStock, txRef); err != nil {
		return 0, err
	}
	if err := appendHistory(ctx, tx, productID, prev, newStock, txRef); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newStock, nil
}

// AttachTxRef writes a ledger confirmation onto the newest stock_history
// row of the product and records it as the product's last tx ref.
func (s *Store) AttachTxRef(ctx context.Context, productID, txRef string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE stock_history SET tx_ref=$2
		WHERE id = (SELECT id FROM stock_history WHERE product_id=$1 ORDER BY id DESC LIMIT 1)`,
		productID, txRef); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products SET ledger_last_tx_ref=$2, updated_at=NOW() WHERE id=$1`,
		productID, txRef); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnableLedger flips a product to ledger-managed. Idempotence is the
// caller's concern (the handler no-ops when already managed).
func (s *Store) EnableLedger(ctx context.Context, productID, txRef string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET ledger_managed=TRUE, ledger_last_tx_ref=$2, updated_at=NOW()
		WHERE id=$1`, productID, txRef)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	return nil
}

// History returns the product's audit trail, newest first.
func (s *Store) History(ctx context.Context, productID string) ([]orders.StockChange, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, previous_stock, new_stock, COALESCE(tx_ref,''), created_at
		FROM stock_history WHERE product_id=$1 ORDER BY id DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.StockChange
	for rows.Next() {
		var c orders.StockChange
		if err := rows.Scan(&c.ProductID, &c.PreviousStock, &c.NewStock, &c.TxRef, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func appendHistory(ctx context.Context, tx pgx.Tx, productID string, prev, next int, txRef string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_history(product_id, previous_stock, new_stock, tx_ref)
		VALUES ($1,$2,$3,NULLIF($4,''))`, productID, prev, next, txRef)
	return err
}

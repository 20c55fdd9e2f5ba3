package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a cart: a product in a size.
type CartItem struct {
	ID        string
	CartID    string
	ProductID int
	Size      string
	Quantity  int
	CreatedAt time.Time
}

// AddCartItem puts qty of a product into the cart, merging with an
// existing line for the same product and size. The cart is created on
// first use.
func (s *Store) AddCartItem(ctx context.Context, cartID string, productID int, size string, qty int) (CartItem, error) {
	if qty <= 0 {
		return CartItem{}, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	now := s.now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO carts (cart_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(cart_id) DO UPDATE SET updated_at = excluded.updated_at`,
		cartID, now, now); err != nil {
		return CartItem{}, fmt.Errorf("upsert cart: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cart_items (id, cart_id, product_id, size, quantity, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cart_id, product_id, size) DO UPDATE SET quantity = quantity + excluded.quantity`,
		uuid.NewString(), cartID, productID, size, qty, now); err != nil {
		return CartItem{}, fmt.Errorf("add cart item: %w", err)
	}
	item, err := scanCartItem(tx.QueryRowContext(ctx,
		`SELECT id, cart_id, product_id, size, quantity, created_at FROM cart_items
		 WHERE cart_id = ? AND product_id = ? AND size = ?`,
		cartID, productID, size))
	if err != nil {
		return CartItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return CartItem{}, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

// CartItems lists a cart's lines in the order they were first added. An
// unknown cart is empty.
func (s *Store) CartItems(ctx context.Context, cartID string) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cart_id, product_id, size, quantity, created_at FROM cart_items
		 WHERE cart_id = ? ORDER BY created_at, rowid`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetCartItemQuantity sets a line's quantity. Zero or less removes the
// line. The item must belong to cartID.
func (s *Store) SetCartItemQuantity(ctx context.Context, cartID, itemID string, qty int) error {
	var res sql.Result
	var err error
	if qty <= 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ? WHERE id = ? AND cart_id = ?`, qty, itemID, cartID)
	}
	if err != nil {
		return fmt.Errorf("set cart item quantity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CartCount returns the total quantity in a cart.
func (s *Store) CartCount(ctx context.Context, cartID string) (int, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT SUM(quantity) FROM cart_items WHERE cart_id = ?`, cartID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cart: %w", err)
	}
	return int(n.Int64), nil
}

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var it CartItem
	var created int64
	if err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Size, &it.Quantity, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CartItem{}, ErrNotFound
		}
		return CartItem{}, fmt.Errorf("scan cart item: %w", err)
	}
	it.CreatedAt = time.Unix(created, 0)
	return it, nil
}

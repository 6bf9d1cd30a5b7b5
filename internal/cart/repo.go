package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("product is out of stock")
)

type Repo struct{ DB *pgxpool.Pool }

// Add menaikkan quantity (clamp ke stok saat ini) atau membuat item baru
// dengan min(requested, stock). Satu statement atomik per (user, product)
// supaya dua add konkuren tidak balapan.
func (r *Repo) Add(ctx context.Context, userID, productID string, requestedQty int) (Item, error) {
	if requestedQty < 1 {
		return Item{}, ErrInvalidQuantity
	}

	var it Item
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		SELECT $1, p.id, LEAST($3, p.stock)
		FROM products p
		WHERE p.id = $2 AND p.stock > 0
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = LEAST(cart_items.quantity + $3,
		                     (SELECT stock FROM products WHERE id = $2)),
		    updated_at = now()
		RETURNING user_id, product_id, quantity, created_at, updated_at`,
		userID, productID, requestedQty).
		Scan(&it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Produk tidak ada atau stok 0; bedakan untuk caller.
		var stock int
		serr := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
		if errors.Is(serr, pgx.ErrNoRows) {
			return Item{}, catalog.ErrNotFound
		}
		if serr != nil {
			return Item{}, serr
		}
		return Item{}, ErrOutOfStock
	}
	if err != nil {
		return Item{}, fmt.Errorf("add cart item: %w", err)
	}
	return it, nil
}

// SetQuantity set langsung (stepper di halaman cart).
// qty <= 0 menghapus item; qty > stock ditolak, bukan di-clamp seperti Add.
func (r *Repo) SetQuantity(ctx context.Context, userID, productID string, qty int) (Item, bool, error) {
	if qty <= 0 {
		if err := r.Remove(ctx, userID, productID); err != nil {
			return Item{}, false, err
		}
		return Item{}, true, nil
	}

	var stock int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, catalog.ErrNotFound
	}
	if err != nil {
		return Item{}, false, err
	}
	if qty > stock {
		return Item{}, false, &catalog.InsufficientStockError{ProductID: productID, Required: qty, Available: stock}
	}

	var it Item
	err = r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = excluded.quantity, updated_at = now()
		RETURNING user_id, product_id, quantity, created_at, updated_at`,
		userID, productID, qty).
		Scan(&it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, false, fmt.Errorf("set cart quantity: %w", err)
	}
	return it, false, nil
}

// Remove item yang tidak ada = no-op diam, bukan error.
func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

// Clear menghapus semua item user, atau hanya productIDs kalau diberikan
// (dipakai partial clear pasca-checkout). Return jumlah yang terhapus.
func (r *Repo) Clear(ctx context.Context, userID string, productIDs ...string) (int64, error) {
	if len(productIDs) == 0 {
		ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
		if err != nil {
			return 0, err
		}
		return ct.RowsAffected(), nil
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id = ANY($2)`, userID, productIDs)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// List join dengan produk live untuk display; urut created_at biar stabil.
func (r *Repo) List(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.product_id, p.name, p.image_url, p.price, p.stock, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Name, &l.ImageURL, &l.UnitPrice, &l.Stock, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) Counts(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(quantity), 0)
		FROM cart_items WHERE user_id=$1`, userID).Scan(&c.Items, &c.Units)
	if err != nil {
		return Counts{}, err
	}
	return c, nil
}

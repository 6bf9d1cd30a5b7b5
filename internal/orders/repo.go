package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-storefront-commerce.git/internal/pricing"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrCartEmpty = errors.New("cart is empty")
)

type Repo struct {
	DB      *pgxpool.Pool
	Pricing pricing.Config
}

const orderCols = `id, user_id, status, payment_status, payment_ref,
	subtotal, shipping_fee, tax, total, placed_at, fulfilled_at, cancelled_at, updated_at`

// Place: cart -> order dalam satu transaksi.
// Re-read cart di server (isi cart dari client tidak pernah dipercaya),
// lock produk FOR UPDATE urut id (hindari deadlock), cek stok all-or-nothing,
// decrement stok + snapshot harga + insert order PENDING/PENDING.
// Cart TIDAK dibersihkan di sini; itu tugas reconciliation saat payment sukses.
func (r *Repo) Place(ctx context.Context, userID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return Order{}, err
	}
	qtyByProduct := map[string]int{}
	productIDs := make([]string, 0, 8)
	for rows.Next() {
		var pid string
		var qty int
		if err := rows.Scan(&pid, &qty); err != nil {
			rows.Close()
			return Order{}, err
		}
		qtyByProduct[pid] = qty
		productIDs = append(productIDs, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	if len(productIDs) == 0 {
		return Order{}, ErrCartEmpty
	}

	// Lock baris produk; ORDER BY id supaya placement konkuren mengambil
	// lock dengan urutan yang sama.
	prows, err := tx.Query(ctx, `
		SELECT id, price, stock FROM products
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`, productIDs)
	if err != nil {
		return Order{}, err
	}
	type locked struct {
		price decimal.Decimal
		stock int
	}
	byID := map[string]locked{}
	for prows.Next() {
		var id string
		var l locked
		if err := prows.Scan(&id, &l.price, &l.stock); err != nil {
			prows.Close()
			return Order{}, err
		}
		byID[id] = l
	}
	prows.Close()
	if err := prows.Err(); err != nil {
		return Order{}, err
	}

	lines := make([]pricing.Line, 0, len(productIDs))
	items := make([]LineItem, 0, len(productIDs))
	for _, pid := range productIDs {
		p, ok := byID[pid]
		if !ok {
			return Order{}, fmt.Errorf("product not found: %s", pid)
		}
		qty := qtyByProduct[pid]
		if qty > p.stock {
			// satu baris gagal = seluruh placement batal, rollback via defer
			return Order{}, &catalog.InsufficientStockError{ProductID: pid, Required: qty, Available: p.stock}
		}
		lines = append(lines, pricing.Line{UnitPrice: p.price, Quantity: qty})
		items = append(items, LineItem{
			ProductID: pid,
			UnitPrice: p.price,
			Quantity:  qty,
			LineTotal: p.price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1`, it.ProductID, it.Quantity); err != nil {
			return Order{}, err
		}
	}

	quote := r.Pricing.Compute(lines)
	o := Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		PaymentRef:    "pay_" + uuid.NewString(),
		Subtotal:      quote.Subtotal,
		ShippingFee:   quote.ShippingFee,
		Tax:           quote.Tax,
		Total:         quote.Total,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, payment_status, payment_ref,
		                    subtotal, shipping_fee, tax, total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING placed_at, updated_at`,
		o.ID, o.UserID, o.Status, o.PaymentStatus, o.PaymentRef,
		o.Subtotal, o.ShippingFee, o.Tax, o.Total).Scan(&o.PlacedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	for i := range items {
		items[i].OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, unit_price, quantity, line_total)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, items[i].ProductID, items[i].UnitPrice, items[i].Quantity, items[i].LineTotal); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) GetByID(ctx context.Context, orderID string) (Order, error) {
	return r.getBy(ctx, `WHERE id=$1`, orderID)
}

func (r *Repo) GetByPaymentRef(ctx context.Context, paymentRef string) (Order, error) {
	return r.getBy(ctx, `WHERE payment_ref=$1`, paymentRef)
}

// getBy adalah read idempoten, jadi boleh di-retry dengan backoff
// kalau koneksi lagi goyang. Not-found itu final, jangan di-retry.
func (r *Repo) getBy(ctx context.Context, where, arg string) (Order, error) {
	var o Order
	err := retry.Do(ctx, retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond)), func(ctx context.Context) error {
		err := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders `+where, arg).
			Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentRef,
				&o.Subtotal, &o.ShippingFee, &o.Tax, &o.Total,
				&o.PlacedAt, &o.FulfilledAt, &o.CancelledAt, &o.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, unit_price, quantity, line_total
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// MarkPaid transisi terjaga PENDING -> PAID, plus bersihkan cart item
// user untuk produk yang di-order, dalam satu transaksi supaya "clear
// tepat sekali" ikut atomik dengan transisinya. applied=false berarti order
// sudah lewat PENDING (duplikat / out-of-order), bukan error.
func (r *Repo) MarkPaid(ctx context.Context, paymentRef string) (applied bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID, userID string
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE payment_ref=$1 AND status=$4
		RETURNING id, user_id`,
		paymentRef, StatusPaid, PaymentPaid, StatusPending).Scan(&orderID, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id IN
		      (SELECT product_id FROM order_items WHERE order_id = $2)`,
		userID, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// MarkPaymentFailed hanya menyentuh payment_status; order tetap PENDING,
// stok tetap ter-reserve sampai cancel eksplisit (atau expiry job).
func (r *Repo) MarkPaymentFailed(ctx context.Context, paymentRef string) (applied bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now()
		WHERE payment_ref=$1 AND status=$3 AND payment_status=$4`,
		paymentRef, PaymentFailed, StatusPending, PaymentPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkRefunded valid hanya dari PAID/FULFILLED; mengembalikan stok
// dalam transaksi yang sama.
func (r *Repo) MarkRefunded(ctx context.Context, paymentRef string) (applied bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID string
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE payment_ref=$1 AND status = ANY($4)
		RETURNING id`,
		paymentRef, StatusRefunded, PaymentRefunded,
		[]string{string(StatusPaid), string(StatusFulfilled)}).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := restoreStockTx(ctx, tx, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// MarkFulfilled: aksi operator PAID -> FULFILLED.
func (r *Repo) MarkFulfilled(ctx context.Context, orderID string) (applied bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, fulfilled_at=now(), updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, StatusFulfilled, StatusPaid)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Cancel: PENDING -> CANCELLED + release stok, satu transaksi.
func (r *Repo) Cancel(ctx context.Context, orderID string) (applied bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, cancelled_at=now(), updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, StatusCancelled, StatusPending)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}
	if err := restoreStockTx(ctx, tx, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ListStalePending untuk expiry job: PENDING yang lebih tua dari cutoff.
func (r *Repo) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status=$1 AND placed_at < now() - $2::interval
		ORDER BY placed_at LIMIT $3`,
		StatusPending, fmt.Sprintf("%f seconds", olderThan.Seconds()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordPaymentAnomaly mencatat mismatch amount untuk review manual;
// order tidak disentuh.
func (r *Repo) RecordPaymentAnomaly(ctx context.Context, orderID, paymentRef string, expected, received decimal.Decimal) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payment_anomalies (order_id, payment_ref, expected, received)
		VALUES ($1,$2,$3,$4)`, orderID, paymentRef, expected, received)
	return err
}

func restoreStockTx(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`, orderID)
	return err
}

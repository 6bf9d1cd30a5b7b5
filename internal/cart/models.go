package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line adalah item cart yang sudah di-join dengan data produk live,
// hanya untuk rendering. Harga otoritatif saat checkout dibaca ulang
// di dalam transaksi placement, bukan dari sini.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// Counts ringkasan cart untuk badge UI.
type Counts struct {
	Items int `json:"items"`
	Units int `json:"units"`
}

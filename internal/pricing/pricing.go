package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config berisi konstanta harga dalam unit mata uang display.
// Default mengikuti storefront: gratis ongkir >= 250, flat fee 12, pajak 9%.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(250),
		FlatShippingFee:       decimal.NewFromInt(12),
		TaxRate:               decimal.New(9, -2),
	}
}

// ParseConfig membaca konstanta dari string env (lihat internal/config).
func ParseConfig(threshold, fee, rate string) (Config, error) {
	t, err := decimal.NewFromString(threshold)
	if err != nil {
		return Config{}, fmt.Errorf("parse free shipping threshold %q: %w", threshold, err)
	}
	f, err := decimal.NewFromString(fee)
	if err != nil {
		return Config{}, fmt.Errorf("parse flat shipping fee %q: %w", fee, err)
	}
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return Config{}, fmt.Errorf("parse tax rate %q: %w", rate, err)
	}
	return Config{FreeShippingThreshold: t, FlatShippingFee: f, TaxRate: r}, nil
}

// Line adalah satu baris (harga satuan, qty) yang masuk perhitungan.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote hasil perhitungan; ephemeral, tidak pernah di-cache antar request
// karena harga katalog bisa berubah antara add-to-cart dan checkout.
type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// Compute murni dan aman dipanggil konkuren.
// subtotal = sum(unitPrice*qty); ongkir flat di bawah threshold;
// pajak = round-half-up(subtotal*rate, 2) atas subtotal saja.
func (c Config) Compute(lines []Line) Quote {
	if len(lines) == 0 {
		// cart kosong: quote nol, jangan kenakan ongkir
		return Quote{Subtotal: decimal.Zero, ShippingFee: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := decimal.Zero
	if subtotal.LessThan(c.FreeShippingThreshold) {
		shipping = c.FlatShippingFee
	}

	// decimal.Round = half away from zero; untuk nilai non-negatif
	// identik dengan half-up di batas sen.
	tax := subtotal.Mul(c.TaxRate).Round(2)

	return Quote{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Tax:         tax,
		Total:       subtotal.Add(shipping).Add(tax),
	}
}

package catalog

import "fmt"

// InsufficientStockError membawa detail kekurangan stok per produk,
// dipakai cart (set quantity) dan order placement (reject all-or-nothing).
type InsufficientStockError struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

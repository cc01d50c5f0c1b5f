package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue entry. Cost is the current price.
type Product struct {
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Cost      decimal.Decimal `json:"cost"`
	Rating    int             `json:"rating"`
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProductSnapshot is the copy of a product stored inside a cart line.
// It is taken when the line is added so later price changes do not reach the cart.
type ProductSnapshot struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Cost     decimal.Decimal `json:"cost"`
	Rating   int             `json:"rating"`
	Image    string          `json:"image"`
}

// Snapshot copies the product fields that a cart line keeps.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Cost:     p.Cost,
		Rating:   p.Rating,
		Image:    p.Image,
	}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user collection of products pending purchase, keyed by email.
type Cart struct {
	ID            string     `json:"_id"`
	Email         string     `json:"email"`
	Items         []CartItem `json:"cartItems"`
	PaymentOption string     `json:"paymentOption"`
	Version       int        `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CartItem is one cart line: a product snapshot and the quantity wanted.
type CartItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// IndexOf returns the position of the line holding productID, or -1.
// productID must be in canonical form, as stored in the snapshot.
func (c *Cart) IndexOf(productID string) int {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Total sums snapshot cost times quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Product.Cost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Clone returns a copy whose Items slice can be modified without touching c.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAddress is the placeholder every user starts with until a real address is set.
const DefaultAddress = "ADDRESS_NOT_SET"

// User is a registered shopper with a wallet balance.
type User struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	WalletMoney  decimal.Decimal `json:"walletMoney"`
	Address      string          `json:"address"`
	Version      int             `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// HasSetNonDefaultAddress reports whether the user replaced the placeholder address.
func (u *User) HasSetNonDefaultAddress() bool {
	return u.Address != "" && u.Address != DefaultAddress
}

// UserAddress is the id/email/address projection of a user.
type UserAddress struct {
	ID      string `json:"_id"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

package cart

import (
	"context"

	"qkart-backend/internal/domain"
)

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Cart, error)
	Create(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
	// Save replaces the lines and payment option of cart if its Version still matches.
	Save(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
}

package user

import (
	"context"

	"qkart-backend/internal/domain"
)

// Repository persists and fetches users.
type Repository interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Save writes the mutable fields of u if its Version still matches the stored row.
	Save(ctx context.Context, u domain.User) (*domain.User, error)
}

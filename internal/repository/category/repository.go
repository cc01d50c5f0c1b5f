package category

import (
	"context"

	"qkart-backend/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Category, error)
}

package category

import (
	"context"

	"qkart-backend/internal/domain"
	"qkart-backend/internal/repository/category"
)

type Service struct {
	repo category.Repository
}

func New(repo category.Repository) *Service {
	return &Service{repo: repo}
}

// List returns every category that has at least one product, by name.
func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Internal("failed to list categories", err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

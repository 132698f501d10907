package service

import (
	"context"

	"kasirinaja/backoffice/internal/pricing"
)

// SaleTotals loads a sale and runs it through the discount pipeline.
func (s *Service) SaleTotals(ctx context.Context, saleID string) (pricing.Breakdown, error) {
	if _, err := s.actor(ctx); err != nil {
		return pricing.Breakdown{}, err
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return pricing.Calculate(pricing.SnapshotOf(*sale)), nil
}

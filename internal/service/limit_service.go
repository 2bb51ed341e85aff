package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage/postgres"
)

// Limits — источник лимитов экспозиции: индивидуальный лимит группы
// либо лимит по умолчанию из конфигурации.
type Limits interface {
	LimitFor(ctx context.Context, key models.ExposureKey) (decimal.Decimal, error)
}

type LimitService struct {
	repo         postgres.LimitRepository
	defaultLimit decimal.Decimal
}

func NewLimitService(repo postgres.LimitRepository, defaultLimit decimal.Decimal) *LimitService {
	return &LimitService{
		repo:         repo,
		defaultLimit: defaultLimit,
	}
}

func (s *LimitService) LimitFor(ctx context.Context, key models.ExposureKey) (decimal.Decimal, error) {
	const op = "service.LimitFor"

	limit, err := s.repo.GetOverride(ctx, key.PTS, key.ProcessingEntity, key.CounterpartyID)
	if err != nil {
		if errors.Is(err, custom_err.ErrNotFound) {
			return s.defaultLimit, nil
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return limit, nil
}

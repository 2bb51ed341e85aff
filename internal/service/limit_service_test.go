package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gw-settlement-guard/internal/custom_err"
)

func TestLimitService_OverrideWins(t *testing.T) {
	repo := new(MockLimitRepo)
	service := NewLimitService(repo, decimal.RequireFromString("1000000"))
	ctx := context.Background()

	key := testGroupKey()
	repo.On("GetOverride", ctx, key.PTS, key.ProcessingEntity, key.CounterpartyID).
		Return(decimal.RequireFromString("250000"), nil)

	limit, err := service.LimitFor(ctx, key)

	assert.NoError(t, err)
	assert.True(t, limit.Equal(decimal.RequireFromString("250000")))
}

func TestLimitService_DefaultFallback(t *testing.T) {
	repo := new(MockLimitRepo)
	service := NewLimitService(repo, decimal.RequireFromString("1000000"))
	ctx := context.Background()

	key := testGroupKey()
	repo.On("GetOverride", ctx, key.PTS, key.ProcessingEntity, key.CounterpartyID).
		Return(decimal.Zero, custom_err.ErrNotFound)

	limit, err := service.LimitFor(ctx, key)

	assert.NoError(t, err)
	assert.True(t, limit.Equal(decimal.RequireFromString("1000000")))
}

func TestLimitService_RepositoryError(t *testing.T) {
	repo := new(MockLimitRepo)
	service := NewLimitService(repo, decimal.RequireFromString("1000000"))
	ctx := context.Background()

	key := testGroupKey()
	repo.On("GetOverride", ctx, key.PTS, key.ProcessingEntity, key.CounterpartyID).
		Return(decimal.Zero, errors.New("connection refused"))

	limit, err := service.LimitFor(ctx, key)

	assert.Error(t, err)
	assert.True(t, limit.IsZero())
}

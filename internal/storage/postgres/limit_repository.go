package postgres

import (
	"context"
	"errors"
	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LimitRepository interface {
	GetOverride(ctx context.Context, pts, processingEntity, counterpartyID string) (decimal.Decimal, error)
}

type PgLimitRepository struct {
	db *pgxpool.Pool
}

func NewLimitRepository(db *pgxpool.Pool) LimitRepository {
	return &PgLimitRepository{db: db}
}

// GetOverride возвращает ErrNotFound, если для группы нет
// индивидуального лимита; вызывающий подставляет лимит по умолчанию.
func (r *PgLimitRepository) GetOverride(ctx context.Context, pts, processingEntity, counterpartyID string) (decimal.Decimal, error) {
	var limit decimal.Decimal
	err := r.db.QueryRow(ctx, storage.GetLimitOverrideQuery, pts, processingEntity, counterpartyID).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, custom_err.ErrNotFound
		}
		return decimal.Zero, err
	}
	return limit, nil
}

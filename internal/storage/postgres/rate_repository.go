package postgres

import (
	"context"
	"errors"
	"fmt"
	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RateRepository interface {
	GetAll(ctx context.Context) ([]models.ExchangeRate, error)
	GetByCurrency(ctx context.Context, currency string) (*models.ExchangeRate, error)
	Upsert(ctx context.Context, currency string, rateToUSD decimal.Decimal) error
	OldestUpdate(ctx context.Context) (*time.Time, error)
}

type PgRateRepository struct {
	db *pgxpool.Pool
}

func NewRateRepository(db *pgxpool.Pool) RateRepository {
	return &PgRateRepository{db: db}
}

func (r *PgRateRepository) GetAll(ctx context.Context) ([]models.ExchangeRate, error) {
	const op = "storage.GetAllRates"

	rows, err := r.db.Query(ctx, storage.GetAllRatesQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rates []models.ExchangeRate
	for rows.Next() {
		var rate models.ExchangeRate
		if err := rows.Scan(&rate.ID, &rate.Currency, &rate.RateToUSD, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (r *PgRateRepository) GetByCurrency(ctx context.Context, currency string) (*models.ExchangeRate, error) {
	const op = "storage.GetRateByCurrency"

	var rate models.ExchangeRate
	err := r.db.QueryRow(ctx, storage.GetRateByCurrencyQuery, currency).Scan(
		&rate.ID,
		&rate.Currency,
		&rate.RateToUSD,
		&rate.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrRateNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rate, nil
}

func (r *PgRateRepository) Upsert(ctx context.Context, currency string, rateToUSD decimal.Decimal) error {
	const op = "storage.UpsertRate"

	if _, err := r.db.Exec(ctx, storage.UpsertRateQuery, currency, rateToUSD); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// OldestUpdate возвращает nil, если курсов нет вовсе.
func (r *PgRateRepository) OldestUpdate(ctx context.Context) (*time.Time, error) {
	const op = "storage.OldestRateUpdate"

	var oldest *time.Time
	if err := r.db.QueryRow(ctx, storage.OldestRateUpdateQuery).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return oldest, nil
}

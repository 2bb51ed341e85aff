package postgres

import (
	"context"
	"errors"
	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExposureRepository владеет строками exposure_totals. Никто другой их не пишет.
type ExposureRepository interface {
	EnsureRowTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (decimal.Decimal, int64, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, totalUSD decimal.Decimal, lastIncludedSeq int64) error

	Get(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error)
}

type PgExposureRepository struct {
	db *pgxpool.Pool
}

func NewExposureRepository(db *pgxpool.Pool) ExposureRepository {
	return &PgExposureRepository{db: db}
}

func (r *PgExposureRepository) EnsureRowTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) error {
	_, err := tx.Exec(ctx, storage.EnsureExposureRowQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate)
	return err
}

func (r *PgExposureRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (decimal.Decimal, int64, error) {
	var total decimal.Decimal
	var lastSeq int64
	err := tx.QueryRow(ctx, storage.GetExposureForUpdateQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate).Scan(&total, &lastSeq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, 0, custom_err.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return decimal.Zero, 0, custom_err.ErrConcurrencyConflict
		}
		return decimal.Zero, 0, err
	}
	return total, lastSeq, nil
}

func (r *PgExposureRepository) UpdateTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, totalUSD decimal.Decimal, lastIncludedSeq int64) error {
	res, err := tx.Exec(ctx, storage.UpdateExposureQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate,
		totalUSD, lastIncludedSeq)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return custom_err.ErrNotFound
	}
	return nil
}

func (r *PgExposureRepository) Get(ctx context.Context, key models.ExposureKey) (*models.ExposureTotal, error) {
	total := models.ExposureTotal{Key: key}
	err := r.db.QueryRow(ctx, storage.GetExposureQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate).Scan(
		&total.TotalUSD, &total.LastIncludedSeq, &total.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, err
	}
	return &total, nil
}

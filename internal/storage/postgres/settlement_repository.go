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
)

type SettlementRepository interface {
	AcquireIngestLockTx(ctx context.Context, tx pgx.Tx, settlementID string) error
	GetLatestVersionForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string) (int64, error)
	InsertTx(ctx context.Context, tx pgx.Tx, s *models.Settlement) error
	MarkOldVersionsTx(ctx context.Context, tx pgx.Tx, settlementID string, beforeVersion int64) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) (*models.Settlement, error)
	ListInScopeByGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error)
	MaxSeqForGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (int64, error)

	Get(ctx context.Context, settlementID string, version int64) (*models.Settlement, error)
	ListInScopeByGroup(ctx context.Context, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error)
	ListGroupsForRecalc(ctx context.Context, pts, processingEntity, counterpartyID string, dateFrom, dateTo time.Time) ([]models.ExposureKey, error)
}

type PgSettlementRepository struct {
	db *pgxpool.Pool
}

func NewSettlementRepository(db *pgxpool.Pool) SettlementRepository {
	return &PgSettlementRepository{db: db}
}

func (r *PgSettlementRepository) Get(ctx context.Context, settlementID string, version int64) (*models.Settlement, error) {
	const op = "storage.GetSettlement"

	var s models.Settlement
	err := r.db.QueryRow(ctx, storage.GetSettlementQuery, settlementID, version).Scan(
		&s.SeqID,
		&s.SettlementID,
		&s.SettlementVersion,
		&s.PTS,
		&s.ProcessingEntity,
		&s.CounterpartyID,
		&s.ValueDate,
		&s.Currency,
		&s.Amount,
		&s.Direction,
		&s.SettlementType,
		&s.BusinessStatus,
		&s.IsOld,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

func (r *PgSettlementRepository) ListInScopeByGroup(ctx context.Context, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error) {
	const op = "storage.ListInScopeByGroup"

	rows, err := r.db.Query(ctx, storage.ListInScopeByGroupQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate, maxSeq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scanScopedAmounts(rows, op)
}

func (r *PgSettlementRepository) ListGroupsForRecalc(ctx context.Context, pts, processingEntity, counterpartyID string, dateFrom, dateTo time.Time) ([]models.ExposureKey, error) {
	const op = "storage.ListGroupsForRecalc"

	rows, err := r.db.Query(ctx, storage.ListGroupsForRecalcQuery, pts, processingEntity, counterpartyID, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var groups []models.ExposureKey
	for rows.Next() {
		var key models.ExposureKey
		if err := rows.Scan(&key.PTS, &key.ProcessingEntity, &key.CounterpartyID, &key.ValueDate); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		groups = append(groups, key)
	}
	return groups, rows.Err()
}

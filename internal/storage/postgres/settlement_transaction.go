package postgres

import (
	"context"
	"errors"
	"fmt"
	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (r *PgSettlementRepository) AcquireIngestLockTx(ctx context.Context, tx pgx.Tx, settlementID string) error {
	_, err := tx.Exec(ctx, storage.AcquireSettlementLockQuery, settlementID)
	return err
}

func (r *PgSettlementRepository) GetLatestVersionForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx, storage.GetLatestVersionForUpdateQuery, settlementID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, custom_err.ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

func (r *PgSettlementRepository) InsertTx(ctx context.Context, tx pgx.Tx, s *models.Settlement) error {
	err := tx.QueryRow(ctx, storage.InsertSettlementQuery,
		s.SettlementID, s.SettlementVersion, s.PTS, s.ProcessingEntity, s.CounterpartyID,
		s.ValueDate, s.Currency, s.Amount, s.Direction, s.SettlementType, s.BusinessStatus,
	).Scan(&s.SeqID, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return custom_err.ErrStaleVersion
		}
		return err
	}
	return nil
}

func (r *PgSettlementRepository) MarkOldVersionsTx(ctx context.Context, tx pgx.Tx, settlementID string, beforeVersion int64) error {
	_, err := tx.Exec(ctx, storage.MarkOldVersionsQuery, settlementID, beforeVersion)
	return err
}

func (r *PgSettlementRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) (*models.Settlement, error) {
	var s models.Settlement
	err := tx.QueryRow(ctx, storage.GetSettlementForUpdateQuery, settlementID, version).Scan(
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
		return nil, err
	}
	return &s, nil
}

func (r *PgSettlementRepository) ListInScopeByGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey, maxSeq int64) ([]models.ScopedAmount, error) {
	const op = "storage.ListInScopeByGroupTx"

	rows, err := tx.Query(ctx, storage.ListInScopeByGroupQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate, maxSeq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scanScopedAmounts(rows, op)
}

func scanScopedAmounts(rows pgx.Rows, op string) ([]models.ScopedAmount, error) {
	defer rows.Close()

	var amounts []models.ScopedAmount
	for rows.Next() {
		var a models.ScopedAmount
		if err := rows.Scan(&a.SeqID, &a.Currency, &a.Amount); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		amounts = append(amounts, a)
	}
	return amounts, rows.Err()
}

func (r *PgSettlementRepository) MaxSeqForGroupTx(ctx context.Context, tx pgx.Tx, key models.ExposureKey) (int64, error) {
	var maxSeq int64
	err := tx.QueryRow(ctx, storage.MaxSeqForGroupQuery,
		key.PTS, key.ProcessingEntity, key.CounterpartyID, key.ValueDate).Scan(&maxSeq)
	return maxSeq, err
}

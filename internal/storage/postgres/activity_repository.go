package postgres

import (
	"context"
	"fmt"
	"gw-settlement-guard/internal/models"
	"gw-settlement-guard/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository — журнал действий workflow. Только вставка,
// записи не обновляются и не удаляются.
type ActivityRepository interface {
	AppendTx(ctx context.Context, tx pgx.Tx, record *models.ActivityRecord) error
	ListForSettlementTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) ([]models.ActivityRecord, error)

	ListForSettlement(ctx context.Context, settlementID string, version int64) ([]models.ActivityRecord, error)
}

type PgActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) ActivityRepository {
	return &PgActivityRepository{db: db}
}

func (r *PgActivityRepository) AppendTx(ctx context.Context, tx pgx.Tx, record *models.ActivityRecord) error {
	const op = "storage.AppendActivity"

	err := tx.QueryRow(ctx, storage.AppendActivityQuery,
		record.PTS, record.ProcessingEntity, record.SettlementID, record.SettlementVersion,
		record.ActionType, record.UserID, record.UserName, record.Comment,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PgActivityRepository) ListForSettlementTx(ctx context.Context, tx pgx.Tx, settlementID string, version int64) ([]models.ActivityRecord, error) {
	rows, err := tx.Query(ctx, storage.ListActivityForSettlementQuery, settlementID, version)
	if err != nil {
		return nil, err
	}
	return scanActivityRows(rows)
}

func (r *PgActivityRepository) ListForSettlement(ctx context.Context, settlementID string, version int64) ([]models.ActivityRecord, error) {
	rows, err := r.db.Query(ctx, storage.ListActivityForSettlementQuery, settlementID, version)
	if err != nil {
		return nil, err
	}
	return scanActivityRows(rows)
}

func scanActivityRows(rows pgx.Rows) ([]models.ActivityRecord, error) {
	const op = "storage.scanActivityRows"
	defer rows.Close()

	var records []models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		err := rows.Scan(
			&rec.ID,
			&rec.PTS,
			&rec.ProcessingEntity,
			&rec.SettlementID,
			&rec.SettlementVersion,
			&rec.ActionType,
			&rec.UserID,
			&rec.UserName,
			&rec.Comment,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

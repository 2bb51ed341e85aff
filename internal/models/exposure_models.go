package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExposureTotal — нарастающий итог по группе экспозиции.
// LastIncludedSeq — водяной знак: наибольший seq_id расчета,
// уже учтенного в TotalUSD.
type ExposureTotal struct {
	Key             ExposureKey     `json:"group"`
	TotalUSD        decimal.Decimal `json:"total_usd" db:"total_usd"`
	LastIncludedSeq int64           `json:"last_included_seq" db:"last_included_seq"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IncrementResult возвращается агрегатором после инкрементального обновления.
type IncrementResult struct {
	Applied       bool
	PreviousTotal decimal.Decimal
	NewTotal      decimal.Decimal
}

// RecalcResult — итог полного пересчета группы.
type RecalcResult struct {
	PreviousTotal       decimal.Decimal
	NewTotal            decimal.Decimal
	SettlementsIncluded int
	AsOfSeq             int64
}

// ScopedAmount — сумма одного входящего в расчет settlement при пересчете
type ScopedAmount struct {
	SeqID    int64
	Currency string
	Amount   decimal.Decimal
}

// RecalculateRequest — запрос ручного пересчета по фильтру групп
type RecalculateRequest struct {
	PTS              string `json:"pts"`
	ProcessingEntity string `json:"processing_entity"`
	CounterpartyID   string `json:"counterparty_id,omitempty"`
	DateFrom         string `json:"date_from" example:"2026-08-01"`
	DateTo           string `json:"date_to" example:"2026-08-31"`
	Reason           string `json:"reason"`
}

// RecalculateResponse — результат пересчета
type RecalculateResponse struct {
	Message            string `json:"message"`
	GroupsRecalculated int    `json:"groups_recalculated"`
}

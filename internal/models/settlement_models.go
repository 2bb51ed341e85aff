package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout — формат дат валютирования во внешнем API.
const DateLayout = "2006-01-02"

// Направление платежа
type Direction string

const (
	DirectionPay     Direction = "PAY"
	DirectionReceive Direction = "RECEIVE"
)

func (d Direction) IsValid() bool {
	return d == DirectionPay || d == DirectionReceive
}

// Тип расчета
type SettlementType string

const (
	SettlementGross SettlementType = "GROSS"
	SettlementNet   SettlementType = "NET"
)

func (t SettlementType) IsValid() bool {
	return t == SettlementGross || t == SettlementNet
}

// Бизнес-статус расчета из вышестоящей системы.
// Не путать с workflow-статусом: он вычисляется, а не хранится.
type BusinessStatus string

const (
	BusinessPending   BusinessStatus = "PENDING"
	BusinessVerified  BusinessStatus = "VERIFIED"
	BusinessInvalid   BusinessStatus = "INVALID"
	BusinessCancelled BusinessStatus = "CANCELLED"
)

func (s BusinessStatus) IsValid() bool {
	switch s {
	case BusinessPending, BusinessVerified, BusinessInvalid, BusinessCancelled:
		return true
	}
	return false
}

// Settlement представляет платежную инструкцию одной версии.
// Пара (settlement_id, settlement_version) уникальна и неизменяема.
type Settlement struct {
	SeqID             int64           `json:"seq_id" db:"seq_id"`
	SettlementID      string          `json:"settlement_id" db:"settlement_id"`
	SettlementVersion int64           `json:"settlement_version" db:"settlement_version"`
	PTS               string          `json:"pts" db:"pts"`
	ProcessingEntity  string          `json:"processing_entity" db:"processing_entity"`
	CounterpartyID    string          `json:"counterparty_id" db:"counterparty_id"`
	ValueDate         time.Time       `json:"value_date" db:"value_date"`
	Currency          string          `json:"currency" db:"currency"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Direction         Direction       `json:"direction" db:"direction"`
	SettlementType    SettlementType  `json:"settlement_type" db:"settlement_type"`
	BusinessStatus    BusinessStatus  `json:"business_status" db:"business_status"`
	IsOld             bool            `json:"is_old" db:"is_old"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// InScope сообщает, участвует ли расчет в агрегации экспозиции.
func (s *Settlement) InScope() bool {
	return s.BusinessStatus == BusinessVerified && !s.IsOld
}

func (s *Settlement) Group() ExposureKey {
	return ExposureKey{
		PTS:              s.PTS,
		ProcessingEntity: s.ProcessingEntity,
		CounterpartyID:   s.CounterpartyID,
		ValueDate:        s.ValueDate,
	}
}

// ExposureKey — ключ группы экспозиции.
type ExposureKey struct {
	PTS              string    `json:"pts"`
	ProcessingEntity string    `json:"processing_entity"`
	CounterpartyID   string    `json:"counterparty_id"`
	ValueDate        time.Time `json:"value_date"`
}

func (k ExposureKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.PTS, k.ProcessingEntity, k.CounterpartyID, k.ValueDate.Format("2006-01-02"))
}

// IngestRequest — входящая платежная инструкция
type IngestRequest struct {
	SettlementID      string          `json:"settlement_id"`
	SettlementVersion int64           `json:"settlement_version"`
	PTS               string          `json:"pts"`
	ProcessingEntity  string          `json:"processing_entity"`
	CounterpartyID    string          `json:"counterparty_id"`
	ValueDate         string          `json:"value_date" example:"2026-08-21"`
	Currency          string          `json:"currency"`
	Amount            decimal.Decimal `json:"amount"`
	Direction         Direction       `json:"direction"`
	SettlementType    SettlementType  `json:"settlement_type"`
	BusinessStatus    BusinessStatus  `json:"business_status"`
}

// IngestResponse — результат приема инструкции
type IngestResponse struct {
	Message           string          `json:"message"`
	SettlementID      string          `json:"settlement_id"`
	SettlementVersion int64           `json:"settlement_version"`
	CurrentStatus     WorkflowStatus  `json:"current_status"`
	GroupTotalUSD     decimal.Decimal `json:"group_total_usd"`
	IncludedInTotal   bool            `json:"included_in_total"`
}

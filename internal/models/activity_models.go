package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Тип действия в журнале workflow
type ActionType string

const (
	ActionRequestRelease ActionType = "REQUEST_RELEASE"
	ActionAuthorise      ActionType = "AUTHORISE"
	ActionRecalculate    ActionType = "RECALCULATE"
)

// ActivityRecord — запись append-only журнала действий.
// Записи никогда не изменяются и не удаляются: журнал вместе с
// нарастающим итогом является источником истины для статуса.
type ActivityRecord struct {
	ID                int64      `json:"id" db:"id"`
	PTS               string     `json:"pts" db:"pts"`
	ProcessingEntity  string     `json:"processing_entity" db:"processing_entity"`
	SettlementID      string     `json:"settlement_id" db:"settlement_id"`
	SettlementVersion int64      `json:"settlement_version" db:"settlement_version"`
	ActionType        ActionType `json:"action_type" db:"action_type"`
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	UserName          string     `json:"user_name" db:"user_name"`
	Comment           string     `json:"comment,omitempty" db:"comment"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// Статус жизненного цикла расчета. Вычисляется из итога группы,
// лимита и журнала действий; отдельной хранимой колонки нет.
type WorkflowStatus string

const (
	StatusCreated          WorkflowStatus = "CREATED"
	StatusBlocked          WorkflowStatus = "BLOCKED"
	StatusPendingAuthorise WorkflowStatus = "PENDING_AUTHORISE"
	StatusAuthorised       WorkflowStatus = "AUTHORISED"
)

// ApprovalActor — участник workflow в ответах API
type ApprovalActor struct {
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowInfo — кто запросил и кто подтвердил релиз
type WorkflowInfo struct {
	Requesters []ApprovalActor `json:"requesters"`
	Authorizer *ApprovalActor  `json:"authorizer,omitempty"`
}

// WorkflowActionRequest — тело запроса release/authorise
type WorkflowActionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// WorkflowActionResponse — результат действия workflow
type WorkflowActionResponse struct {
	Message           string         `json:"message"`
	SettlementID      string         `json:"settlement_id"`
	SettlementVersion int64          `json:"settlement_version"`
	NewStatus         WorkflowStatus `json:"new_status"`
}

// StatusResponse — агрегированное представление для queryStatus.
// TotalAsOfUSD — итог группы на момент этой записи, базис классификации;
// GroupTotalUSD — текущий нарастающий итог группы.
type StatusResponse struct {
	SettlementID      string          `json:"settlement_id"`
	SettlementVersion int64           `json:"settlement_version"`
	CalculatedStatus  WorkflowStatus  `json:"calculated_status"`
	Group             ExposureKey     `json:"group"`
	TotalAsOfUSD      decimal.Decimal `json:"total_as_of_usd"`
	GroupTotalUSD     decimal.Decimal `json:"group_total_usd"`
	ExposureLimitUSD  decimal.Decimal `json:"exposure_limit_usd"`
	Approval          WorkflowInfo    `json:"approval"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// событие о превышении лимита экспозиции группой
type ExposureBreachEvent struct {
	SettlementID      string          `json:"settlement_id"`      // Расчет, переведший группу через лимит
	SettlementVersion int64           `json:"settlement_version"` // Его версия
	PTS               string          `json:"pts"`                // Исходная торговая система
	ProcessingEntity  string          `json:"processing_entity"`  // Процессинговая организация
	CounterpartyID    string          `json:"counterparty_id"`    // Контрагент
	ValueDate         time.Time       `json:"value_date"`         // Дата валютирования
	TotalUSD          decimal.Decimal `json:"total_usd"`          // Итог группы после инкремента
	LimitUSD          decimal.Decimal `json:"limit_usd"`          // Действующий лимит
	Timestamp         time.Time       `json:"timestamp"`          // Время события
}

// ключ события для партиционирования kafka
func (e ExposureBreachEvent) Key() string {
	return e.PTS + "/" + e.ProcessingEntity + "/" + e.CounterpartyID + "/" + e.ValueDate.Format("2006-01-02")
}

package storage

const (
	// Сериализация поставок одного settlement_id. Для нового идентификатора
	// строк еще нет и FOR UPDATE ничего не блокирует, advisory-лок закрывает
	// гонку двух первых поставок. Снимается при завершении транзакции.
	AcquireSettlementLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

	// Settlement queries
	InsertSettlementQuery = `
		INSERT INTO settlements (
			settlement_id, settlement_version, pts, processing_entity, counterparty_id,
			value_date, currency, amount, direction, settlement_type, business_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq_id, created_at
	`

	// Последняя сохраненная версия расчета (с FOR UPDATE для сериализации
	// проверки версии и пометки is_old в одной транзакции)
	GetLatestVersionForUpdateQuery = `
		SELECT settlement_version
		FROM settlements
		WHERE settlement_id = $1 AND is_old = false
		ORDER BY settlement_version DESC
		LIMIT 1
		FOR UPDATE
	`

	MarkOldVersionsQuery = `
		UPDATE settlements
		SET is_old = true
		WHERE settlement_id = $1 AND settlement_version < $2 AND is_old = false
	`

	GetSettlementQuery = `
		SELECT seq_id, settlement_id, settlement_version, pts, processing_entity, counterparty_id,
		       value_date, currency, amount, direction, settlement_type, business_status, is_old, created_at
		FROM settlements
		WHERE settlement_id = $1 AND settlement_version = $2
	`

	// Та же выборка с блокировкой строки: сериализует workflow-guards
	// по конкретной паре (settlement_id, settlement_version)
	GetSettlementForUpdateQuery = `
		SELECT seq_id, settlement_id, settlement_version, pts, processing_entity, counterparty_id,
		       value_date, currency, amount, direction, settlement_type, business_status, is_old, created_at
		FROM settlements
		WHERE settlement_id = $1 AND settlement_version = $2
		FOR UPDATE
	`

	// Входящие в расчет экспозиции записи группы до водяного знака включительно
	ListInScopeByGroupQuery = `
		SELECT seq_id, currency, amount
		FROM settlements
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3 AND value_date = $4
		  AND business_status = 'VERIFIED' AND is_old = false
		  AND seq_id <= $5
		ORDER BY seq_id
	`

	MaxSeqForGroupQuery = `
		SELECT COALESCE(MAX(seq_id), 0)
		FROM settlements
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3 AND value_date = $4
	`

	ListGroupsForRecalcQuery = `
		SELECT DISTINCT pts, processing_entity, counterparty_id, value_date
		FROM settlements
		WHERE pts = $1 AND processing_entity = $2
		  AND ($3 = '' OR counterparty_id = $3)
		  AND value_date BETWEEN $4 AND $5
		ORDER BY pts, processing_entity, counterparty_id, value_date
	`

	// Exposure total queries (с FOR UPDATE NOWAIT для взаимного исключения
	// на уровне группы; проигравший конкурент получает 55P03)
	EnsureExposureRowQuery = `
		INSERT INTO exposure_totals (pts, processing_entity, counterparty_id, value_date, total_usd, last_included_seq)
		VALUES ($1, $2, $3, $4, 0, 0)
		ON CONFLICT (pts, processing_entity, counterparty_id, value_date) DO NOTHING
	`

	GetExposureForUpdateQuery = `
		SELECT total_usd, last_included_seq
		FROM exposure_totals
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3 AND value_date = $4
		FOR UPDATE NOWAIT
	`

	UpdateExposureQuery = `
		UPDATE exposure_totals
		SET total_usd = $5, last_included_seq = $6, updated_at = now()
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3 AND value_date = $4
	`

	GetExposureQuery = `
		SELECT total_usd, last_included_seq, updated_at
		FROM exposure_totals
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3 AND value_date = $4
	`

	// Activity log queries (append-only)
	AppendActivityQuery = `
		INSERT INTO activity_log (pts, processing_entity, settlement_id, settlement_version, action_type, user_id, user_name, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	ListActivityForSettlementQuery = `
		SELECT id, pts, processing_entity, settlement_id, settlement_version, action_type, user_id, user_name, comment, created_at
		FROM activity_log
		WHERE settlement_id = $1 AND settlement_version = $2
		ORDER BY id
	`

	// Exchange rate queries
	GetAllRatesQuery = `
		SELECT id, currency, rate_to_usd, updated_at
		FROM exchange_rates
		ORDER BY currency
	`

	GetRateByCurrencyQuery = `
		SELECT id, currency, rate_to_usd, updated_at
		FROM exchange_rates
		WHERE currency = $1
	`

	UpsertRateQuery = `
		INSERT INTO exchange_rates (currency, rate_to_usd)
		VALUES ($1, $2)
		ON CONFLICT (currency) DO UPDATE
		SET rate_to_usd = EXCLUDED.rate_to_usd, updated_at = now()
	`

	OldestRateUpdateQuery = `
		SELECT MIN(updated_at)
		FROM exchange_rates
	`

	// Exposure limit queries
	GetLimitOverrideQuery = `
		SELECT limit_usd
		FROM exposure_limits
		WHERE pts = $1 AND processing_entity = $2 AND counterparty_id = $3
	`
)

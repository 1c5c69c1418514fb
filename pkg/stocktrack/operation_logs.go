package stocktrack

import (
	"context"
	"database/sql"
)

// AddOperationLog adds a new operation log entry.
func (c *Core) AddOperationLog(ctx context.Context, log OperationLog) (int64, error) {
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO operation_logs (operation_type, symbol, details)
		VALUES (?, ?, ?)
	`, log.Operation, log.Symbol, log.Details)
	if err != nil {
		return 0, WrapError(ErrCodeStorage, "insert operation log", err)
	}
	return result.LastInsertId()
}

// GetOperationLogs returns recent operation logs, newest first.
func (c *Core) GetOperationLogs(ctx context.Context, limit, offset int) ([]OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, operation_type, symbol, details, created_at FROM operation_logs ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrCodeStorage, "query operation logs", err)
	}
	defer rows.Close()

	logs := []OperationLog{}
	for rows.Next() {
		var log OperationLog
		var symbol, details, createdAt sql.NullString
		if err := rows.Scan(&log.ID, &log.Operation, &symbol, &details, &createdAt); err != nil {
			return nil, WrapError(ErrCodeStorage, "scan operation log", err)
		}
		if symbol.Valid {
			log.Symbol = &symbol.String
		}
		if details.Valid {
			log.Details = &details.String
		}
		if createdAt.Valid {
			log.CreatedAt = &createdAt.String
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// recordOperation writes an audit row. The mutation it describes has already
// been persisted, so a failure here is only logged.
func (c *Core) recordOperation(ctx context.Context, operation, symbol, details string) {
	if _, err := c.AddOperationLog(ctx, OperationLog{
		Operation: operation,
		Symbol:    stringPtr(symbol),
		Details:   stringPtr(details),
	}); err != nil {
		c.logger.Warn("operation log failed", "operation", operation, "symbol", symbol, "err", err)
	}
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"kerno/internal/action"
	"kerno/internal/repository"
)

// OperationLogPostgres stores the audit entries of operations.
type OperationLogPostgres struct {
	db repository.Querier
}

func NewOperationLogPostgres(db repository.Querier) *OperationLogPostgres {
	return &OperationLogPostgres{db: db}
}

var _ action.OperationLogger = (*OperationLogPostgres)(nil)

// LogOperation inserts one audit entry. The payload is stored as JSON.
func (r *OperationLogPostgres) LogOperation(ctx context.Context, entry action.OperationEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("encode operation payload: %w", err)
	}
	const q = `
		INSERT INTO operation_log (happened_at, user_id, operation, payload)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.db.ExecContext(ctx, q, entry.When, entry.User, entry.Operation, payload)
	return err
}

package action

import (
	"context"
	"fmt"
	"time"

	"kerno/internal/kerno"
)

// LoggerUtility is the utility LogOperation writes to.
const LoggerUtility = "logger repository"

// OperationEntry is one line of the operation audit log.
type OperationEntry struct {
	When      time.Time
	User      string
	Operation string
	Payload   map[string]any
}

// OperationLogger stores audit entries.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationEntry) error
}

type logOperation[P Context] struct{}

// LogOperation returns a step recording the operation on the OperationLogger
// registered as "logger repository". It is best placed after the other steps.
// The context must expose the Kerno through Core(); the user, payload and
// start time are recorded when it exposes UserID(), Payload() and
// StartedAt().
func LogOperation[P Context]() Action[P] {
	return logOperation[P]{}
}

func (logOperation[P]) Name() string { return "LogOperation" }

func (logOperation[P]) Run(ctx context.Context, p P) error {
	core, ok := any(p).(interface{ Core() *kerno.Kerno })
	if !ok {
		return fmt.Errorf("LogOperation: %T does not expose the kerno", p)
	}
	storage, err := kerno.Utility[OperationLogger](core.Core(), LoggerUtility)
	if err != nil {
		return err
	}

	entry := OperationEntry{When: time.Now().UTC(), Operation: Title(ctx)}
	if u, ok := any(p).(interface{ UserID() string }); ok {
		entry.User = u.UserID()
	}
	if pl, ok := any(p).(interface{ Payload() map[string]any }); ok {
		entry.Payload = pl.Payload()
	}
	if s, ok := any(p).(interface{ StartedAt() time.Time }); ok && !s.StartedAt().IsZero() {
		entry.When = s.StartedAt()
	}
	return storage.LogOperation(ctx, entry)
}

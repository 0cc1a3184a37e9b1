package postgres

import (
	"kerno/internal/action"
	"kerno/internal/database"
	"kerno/internal/kerno"
	"kerno/internal/repository"
)

// Extension is the name to list under "includes" in the "kerno" section.
const Extension = "documents"

func init() {
	kerno.RegisterExtension(Extension, Include)
}

// Include wires the PostgreSQL repositories. The session factory and the
// audit logger default to the "database" utility; settings may register
// their own instead.
func Include(e *kerno.Eko) error {
	if db, err := database.FromKerno(e.Kerno); err == nil {
		e.Utilities.SetDefault(repository.SessionFactoryUtility, repository.TxFactory(db))
		e.Utilities.SetDefault(action.LoggerUtility, NewOperationLogPostgres(db))
	}
	for _, name := range []string{repository.SessionFactoryUtility, action.LoggerUtility} {
		if err := e.Utilities.Ensure(name, "The documents extension"); err != nil {
			return err
		}
	}
	e.SetRepositoryFactory(Factory)
	return nil
}

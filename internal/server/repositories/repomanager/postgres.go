package repomanager

import (
	"github.com/dmitrijs2005/tasksync/internal/dbx"
	"github.com/dmitrijs2005/tasksync/internal/server/repositories/tasks"
)

// PostgresRepositoryManager builds PostgreSQL repositories.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs the manager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Tasks(db dbx.DBTX) tasks.Repository {
	return tasks.NewPostgresRepository(db)
}

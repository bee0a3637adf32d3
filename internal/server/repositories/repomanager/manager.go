// Package repomanager hands out repositories bound to a DBTX, so services
// can run the same repository code against *sql.DB or an open transaction.
package repomanager

import (
	"github.com/dmitrijs2005/tasksync/internal/dbx"
	"github.com/dmitrijs2005/tasksync/internal/server/repositories/tasks"
)

// RepositoryManager is the factory for all server repositories.
type RepositoryManager interface {
	Tasks(db dbx.DBTX) tasks.Repository
}

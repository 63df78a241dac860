package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/segrecovery/pkg/orchestrator"
	"github.com/yurykabanov/segrecovery/pkg/storage"
)

func AttemptRecorder(db *sqlx.DB) orchestrator.AttemptRecorder {
	if db == nil {
		return orchestrator.NopRecorder{}
	}

	return storage.NewAttemptRepository(db)
}

package workers

import (
	"context"
	"time"

	"stockwatch_backend/internal/logger"
	"stockwatch_backend/internal/repositories"

	"gorm.io/gorm"
)

// CredentialWorker чистит хранилище учетных данных от давно истекших
// записей. На корректность не влияет: истекшие и отозванные credentials
// отвергаются при предъявлении, это только гигиена таблиц.
type CredentialWorker struct {
	db       *gorm.DB
	credRepo repositories.CredentialRepository
}

func NewCredentialWorker(db *gorm.DB, credRepo repositories.CredentialRepository) *CredentialWorker {
	return &CredentialWorker{db: db, credRepo: credRepo}
}

// Start запускает фоновые задачи
func (w *CredentialWorker) Start(ctx context.Context) {
	go w.purgeExpired(ctx)
}

func (w *CredentialWorker) purgeExpired(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Credential worker stopped")
			return
		case <-ticker.C:
			purged, err := w.credRepo.PurgeExpired(w.db)
			if err != nil {
				logger.WorkerLog("credential_worker", "purge_expired", err)
				continue
			}
			if purged > 0 {
				logger.Info("Purged expired credentials", "count", purged)
			}
		}
	}
}

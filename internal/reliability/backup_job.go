package reliability

import (
	"context"
	"time"

	"github.com/avramidis/tickernav/internal/events"
)

// BackupJob adapts the backup service to the cron scheduler and announces
// completed backups on the event bus.
type BackupJob struct {
	service *BackupService
	bus     *events.Bus
	timeout time.Duration
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(service *BackupService, bus *events.Bus) *BackupJob {
	return &BackupJob{
		service: service,
		bus:     bus,
		timeout: 10 * time.Minute,
	}
}

// Name returns the job identifier used by the scheduler.
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup, then prunes old ones.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, size, err := j.service.CreateAndUpload(ctx)
	if err != nil {
		return err
	}

	j.bus.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
		Key:       key,
		SizeBytes: size,
	})

	return j.service.Prune(ctx)
}

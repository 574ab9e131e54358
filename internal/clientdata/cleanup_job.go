package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob periodically removes expired rows from all cache tables.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job identifier used by the scheduler.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes expired entries from every cache table.
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Cache cleanup failed")
		return err
	}

	var total int64
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		j.log.Info().Int64("deleted", total).Msg("Removed expired cache entries")
	}

	return nil
}

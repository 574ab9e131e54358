package refresh

// Job adapts the refresh service to the cron scheduler.
type Job struct {
	service *Service
}

// NewJob creates the scheduled refresh job.
func NewJob(service *Service) *Job {
	return &Job{service: service}
}

// Name returns the job identifier used by the scheduler.
func (j *Job) Name() string {
	return "watchlist_refresh"
}

// Run refreshes all watchlists.
func (j *Job) Run() error {
	return j.service.RefreshAll()
}

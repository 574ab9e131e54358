package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled background work.
type Job interface {
	Run() error
	Name() string
}

// Cron manages recurring background jobs: watchlist refreshes, cache
// cleanup and backups. Job failures are logged, never fatal.
type Cron struct {
	cron *cron.Cron
	jobs map[string]Job
	log  zerolog.Logger
}

// NewCron creates a cron scheduler. Schedules use the six-field format
// with a seconds column.
func NewCron(log zerolog.Logger) *Cron {
	return &Cron{
		cron: cron.New(cron.WithSeconds()),
		jobs: make(map[string]Job),
		log:  log.With().Str("component", "cron").Logger(),
	}
}

// Start begins running registered jobs on their schedules.
func (c *Cron) Start() {
	c.cron.Start()
	c.log.Info().Int("jobs", len(c.jobs)).Msg("Cron scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (c *Cron) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.log.Info().Msg("Cron scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "0 */15 * * * *"  - every 15 minutes
//   - "0 0 3 * * *"     - daily at 03:00
//   - "@every 30s"      - every 30 seconds
func (c *Cron) AddJob(schedule string, job Job) error {
	_, err := c.cron.AddFunc(schedule, func() {
		c.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			c.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			c.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	c.jobs[job.Name()] = job
	c.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately, outside its schedule.
func (c *Cron) RunNow(name string) error {
	job, ok := c.jobs[name]
	if !ok {
		return ErrUnknownJob{Name: name}
	}
	c.log.Info().Str("job", name).Msg("Running job immediately")
	return job.Run()
}

// JobNames returns the registered job names.
func (c *Cron) JobNames() []string {
	names := make([]string, 0, len(c.jobs))
	for name := range c.jobs {
		names = append(names, name)
	}
	return names
}

// ErrUnknownJob is returned by RunNow for an unregistered job name.
type ErrUnknownJob struct {
	Name string
}

func (e ErrUnknownJob) Error() string {
	return "unknown job: " + e.Name
}

package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a job on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobNotFound is returned when a job name is not registered
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when a job is triggered while its previous run is in progress
	ErrJobAlreadyRunning = errors.New("job is already running")

	// ErrInvalidSchedule is returned for a cron spec that cannot be parsed
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)

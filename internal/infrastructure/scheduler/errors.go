package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a run on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrRunInProgress is returned when a triggered run overlaps a running one
	ErrRunInProgress = errors.New("scheduler run already in progress")
)

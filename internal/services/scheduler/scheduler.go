package scheduler

import (
	"github.com/robfig/cron/v3"
)

// Provider runs jobs on cron schedules.
type Provider interface {
	// Schedule registers job to run on the given
	// cron spec (seconds enabled).
	Schedule(spec string, job func()) (cron.EntryID, error)

	// Start starts the scheduler in its own goroutine.
	// Calling Start on a running scheduler is a no-op.
	Start()

	// Stop stops the scheduler. Running jobs are not
	// interrupted.
	Stop()
}

type CronScheduler struct {
	C *cron.Cron
}

var _ Provider = (*CronScheduler)(nil)

func New() *CronScheduler {
	return &CronScheduler{C: cron.New(cron.WithSeconds())}
}

func (s *CronScheduler) Schedule(spec string, job func()) (cron.EntryID, error) {
	return s.C.AddFunc(spec, job)
}

func (s *CronScheduler) Start() {
	s.C.Start()
}

func (s *CronScheduler) Stop() {
	<-s.C.Stop().Done()
}

package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Scheduler is the narrow delayed-job surface the pipeline depends on.
// The core never names a queue implementation; it only asks for "run this
// after that much time".
type Scheduler interface {
	Schedule(name string, delay time.Duration, task func()) error
	Every(name string, interval time.Duration, task func()) error
	Shutdown() error
}

// GocronScheduler runs delayed and periodic jobs on a gocron runtime.
type GocronScheduler struct {
	inner gocron.Scheduler
}

func NewGocronScheduler() (*GocronScheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.Start()
	return &GocronScheduler{inner: s}, nil
}

// Schedule runs task once after delay. Fire-and-forget: failures inside the
// task are the task's own responsibility.
func (s *GocronScheduler) Schedule(name string, delay time.Duration, task func()) error {
	_, err := s.inner.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] failed to schedule job %s", name)
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	logrus.Debugf("[SCHEDULER] job %s scheduled in %s", name, delay)
	return nil
}

// Every runs task at a fixed interval until shutdown.
func (s *GocronScheduler) Every(name string, interval time.Duration, task func()) error {
	_, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule periodic job %q: %w", name, err)
	}
	logrus.Infof("[SCHEDULER] periodic job %s every %s", name, interval)
	return nil
}

func (s *GocronScheduler) Shutdown() error {
	return s.inner.Shutdown()
}

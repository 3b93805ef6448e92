// Package monitor periodically re-scrapes tasks that are still moving.
package monitor

import (
	"context"
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/julestools/julesmcp/internal/jules"
	"github.com/julestools/julesmcp/internal/logging"
)

// Refresher is the slice of the task driver the monitor needs.
type Refresher interface {
	GetTask(ctx context.Context, taskIDOrURL string) (*jules.Task, error)
	ListTasks(status string, limit int) ([]jules.Task, error)
}

// Monitor refreshes pending and in_progress tasks on a cron schedule. Each
// refresh goes through the driver and therefore the session gate, so it
// never interleaves with a foreground operation.
type Monitor struct {
	driver   Refresher
	schedule string
	budget   time.Duration
	cron     *cronlib.Cron
}

// New builds a monitor. An empty schedule disables it. budget bounds one
// whole sweep; zero means five minutes.
func New(driver Refresher, schedule string, budget time.Duration) *Monitor {
	if budget <= 0 {
		budget = 5 * time.Minute
	}
	return &Monitor{driver: driver, schedule: schedule, budget: budget}
}

// Start registers the refresh job and starts the scheduler. No-op without a
// schedule.
func (m *Monitor) Start() error {
	if m.schedule == "" {
		logging.Debug("monitor: no refresh schedule configured")
		return nil
	}

	c := cronlib.New()
	if _, err := c.AddFunc(m.schedule, m.refresh); err != nil {
		return fmt.Errorf("monitor: bad refresh schedule %q: %w", m.schedule, err)
	}
	c.Start()
	m.cron = c
	logging.Infof("monitor: refreshing tasks on schedule %q", m.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish. Safe
// to call without Start.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}

func (m *Monitor) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), m.budget)
	defer cancel()

	var stale []jules.Task
	for _, status := range []jules.Status{jules.StatusPending, jules.StatusInProgress} {
		tasks, err := m.driver.ListTasks(string(status), 0)
		if err != nil {
			logging.Warnf("monitor: listing %s tasks: %v", status, err)
			return
		}
		stale = append(stale, tasks...)
	}
	if len(stale) == 0 {
		return
	}

	logging.Debugf("monitor: refreshing %d tasks", len(stale))
	for _, task := range stale {
		if ctx.Err() != nil {
			logging.Warnf("monitor: sweep budget exhausted with %s pending", task.ID)
			return
		}
		if _, err := m.driver.GetTask(ctx, task.ID); err != nil {
			logging.Warnf("monitor: refreshing %s: %v", task.ID, err)
		}
	}
}

package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor runs Sweep on the client's SweepSchedule.
type Janitor struct {
	client *Client
	cron   *cron.Cron
}

// NewJanitor schedules sweeps of c. Nothing runs until Start.
func NewJanitor(c *Client) (*Janitor, error) {
	j := &Janitor{client: c, cron: cron.New()}
	if _, err := j.cron.AddFunc(c.cfg.SweepSchedule, j.sweep); err != nil {
		return nil, fmt.Errorf("querycache: invalid sweep schedule %q: %w", c.cfg.SweepSchedule, err)
	}
	return j, nil
}

func (j *Janitor) sweep() {
	if n := j.client.Sweep(context.Background(), time.Now()); n > 0 {
		j.client.log.Debug("swept idle cache entries", zap.Int("entries", n))
	}
}

// Start begins running sweeps in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

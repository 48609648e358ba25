package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronSource emits a signal on a cron schedule.
type CronSource struct {
	schedule cron.Schedule
	spec     string
}

// NewCronSource parses spec, a standard cron expression with optional
// seconds or a descriptor such as "@daily".
func NewCronSource(spec string) (*CronSource, error) {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %w", common.ErrInvalidConfig, spec, err)
	}
	return &CronSource{schedule: schedule, spec: spec}, nil
}

// Name implements Source.
func (c *CronSource) Name() string { return "schedule" }

// Next returns the first activation after t.
func (c *CronSource) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// Listen runs the schedule until ctx is canceled.
func (c *CronSource) Listen(ctx context.Context, offer func(Signal)) error {
	scheduler := cron.New(cron.WithParser(scheduleParser))
	scheduler.Schedule(c.schedule, cron.FuncJob(func() {
		offer(Signal{Source: c.Name(), Payload: c.spec, At: time.Now()})
	}))

	scheduler.Start()
	slog.Info("Schedule started", "spec", c.spec, "next", c.schedule.Next(time.Now()))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// Package sweeper runs the end-of-day absence sweep: once a day at a fixed
// local time, and on demand for every sweep message taken off the queue.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"classattend/internal/classroom"
	"classattend/internal/ledger"
	"classattend/internal/queue"
)

// Sweeper is the part of classroom.Service the runner drives.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time, classID, date string) (classroom.SweepReport, error)
}

// Runner schedules sweeps.
type Runner struct {
	svc   Sweeper
	queue queue.Queue
	at    ledger.Clock
	loc   *time.Location
	now   func() time.Time
}

// New creates a runner that sweeps every class daily at at in loc. q may be
// nil, in which case only the daily run happens.
func New(svc Sweeper, q queue.Queue, at ledger.Clock, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{svc: svc, queue: q, at: at, loc: loc, now: time.Now}
}

// Schedule is the cron schedule that fires every day when the wall clock
// in loc reads at.
func Schedule(at ledger.Clock, loc *time.Location) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", at.Minute, at.Hour))
	if err != nil {
		return nil, errors.Wrapf(err, "parse sweep time %s", at)
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok {
		spec.Location = loc
	}
	return sched, nil
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	sched, err := Schedule(r.at, r.loc)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if r.queue != nil {
		messages, err := r.queue.Consume(ctx)
		if err != nil {
			return errors.Wrap(err, "consume sweep queue")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				if err := r.Handle(ctx, msg); err != nil {
					log.Error().Err(err).Str("type", msg.Type).Msg("sweep message failed")
				}
			}
		}()
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLocation(r.loc), cron.WithLogger(logger))
	// Schedule bypasses the cron-wide chain, so the job carries its own.
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() { r.daily(ctx) }))
	c.Schedule(sched, job)
	c.Start()
	log.Info().Time("next_run", sched.Next(r.now())).Msg("daily sweep scheduled")

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

func (r *Runner) daily(ctx context.Context) {
	report, err := r.svc.Sweep(ctx, r.now(), "", "")
	if err != nil {
		log.Error().Err(err).Int("failed", report.Failed).Msg("daily sweep finished with errors")
	}
	log.Info().Int("classes", report.Classes).Int("marked", report.Marked).Msg("daily sweep done")
}

// Handle processes one queued message. Unknown types are skipped.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeSweep {
		log.Warn().Str("type", msg.Type).Msg("skipping unknown message")
		return nil
	}
	req, err := msg.Sweep()
	if err != nil {
		return err
	}
	report, err := r.svc.Sweep(ctx, r.now(), req.ClassID, req.Date)
	if err != nil {
		return errors.Wrapf(err, "sweep class %q", req.ClassID)
	}
	log.Info().
		Str("class", req.ClassID).
		Str("date", req.Date).
		Str("requested_by", req.RequestedBy).
		Int("marked", report.Marked).
		Msg("requested sweep done")
	return nil
}

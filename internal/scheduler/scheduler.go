package scheduler

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const jobTimeout = 5 * time.Minute

type Options struct {
	// StateTTL enables the sweep of abandoned conversations when positive.
	StateTTL time.Duration
	// DropSchedule is a standard five-field cron spec. Empty disables the
	// scheduled drop; the admin command still works.
	DropSchedule string
	Location     *time.Location
	Now          func() time.Time
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	states  store.StateStore
	dropper *service.Dropper
	opts    Options
}

func New(states store.StateStore, dropper *service.Dropper, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := cron.PrintfLogger(log.Default())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		states:  states,
		dropper: dropper,
		opts:    opts,
	}

	if opts.StateTTL > 0 {
		s.cron.Schedule(cron.Every(sweepInterval(opts.StateTTL)), cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.SweepStates(ctx); err != nil {
				slog.Error("state sweep failed", "err", err)
			}
		}))
	}

	if opts.DropSchedule != "" {
		_, err := s.cron.AddFunc(opts.DropSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.RunDrop(ctx); err != nil {
				slog.Error("scheduled drop failed", "err", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("parse drop schedule %q: %w", opts.DropSchedule, err)
		}
	}
	return s, nil
}

// sweepInterval is half the TTL, kept between one minute and one hour.
func sweepInterval(ttl time.Duration) time.Duration {
	d := ttl / 2
	if d < time.Minute {
		return time.Minute
	}
	if d > time.Hour {
		return time.Hour
	}
	return d
}

// SweepStates deletes conversations idle for longer than the TTL.
func (s *Scheduler) SweepStates(ctx context.Context) (int64, error) {
	cutoff := s.opts.Now().Add(-s.opts.StateTTL)
	n, err := s.states.PurgeStatesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("expired conversations removed", "count", n)
	}
	return n, nil
}

// RunDrop is the scheduled, non-forced drop. A month that already has a
// record is skipped.
func (s *Scheduler) RunDrop(ctx context.Context) (*service.DropReport, error) {
	report, err := s.dropper.Run(ctx, false)
	if err != nil {
		return nil, err
	}
	slog.Info("scheduled drop finished", "outcome", report.Outcome.String(), "month", report.Month, "year", report.Year)
	return report, nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

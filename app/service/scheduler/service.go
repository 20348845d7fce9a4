package scheduler

import (
	"context"
	"log/slog"
	"medremind/app/config"
	"medremind/app/service/dispatch"
	"medremind/app/service/report"
	"medremind/app/service/sweeper"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	tickSpec   = "* * * * *"
	jobTimeout = 2 * time.Minute
)

type Ticker interface {
	Tick(ctx context.Context) int
}

type Sweeper interface {
	Sweep(ctx context.Context) (sweeper.Result, error)
}

type Reporter interface {
	Send(ctx context.Context, kind report.Kind) error
}

// Service runs the minute tick, the retry sweep and the reports on cron
// schedules in the configured timezone.
type Service struct {
	cron *cron.Cron
	jobs []job

	ticker   Ticker
	sweeper  Sweeper
	reporter Reporter

	ctx context.Context
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context)
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg,
		do.MustInvoke[*dispatch.Service](di),
		do.MustInvoke[*sweeper.Service](di),
		do.MustInvoke[*report.Service](di),
	)
}

func NewService(cfg *config.Config, ticker Ticker, sweep Sweeper, reporter Reporter) (*Service, error) {
	logger := slogLogger{}

	s := &Service{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ticker:   ticker,
		sweeper:  sweep,
		reporter: reporter,
		ctx:      context.Background(),
	}

	s.jobs = []job{
		{name: "tick", spec: tickSpec, run: s.tick},
		{name: "sweep", spec: cfg.Reminders.SweepCron, run: s.sweep},
		{name: "daily_report", spec: cfg.Reports.DailyCron, run: s.report(report.Daily)},
		{name: "weekly_report", spec: cfg.Reports.WeeklyCron, run: s.report(report.Weekly)},
	}
	if cfg.Reports.BriefingCron != "" {
		s.jobs = append(s.jobs, job{name: "briefing", spec: cfg.Reports.BriefingCron, run: s.report(report.Briefing)})
	}

	for _, j := range s.jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j)); err != nil {
			return nil, oops.Errorf("invalid cron expression for %s (%q): %w", j.name, j.spec, err)
		}
	}

	return s, nil
}

// Run starts the cron loop and blocks until ctx is done and running jobs finish.
func (s *Service) Run(ctx context.Context) error {
	s.ctx = ctx

	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.jobs))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")

	return nil
}

// Next returns the next activation of every job, keyed by job name.
func (s *Service) Next(now time.Time) map[string]time.Time {
	result := make(map[string]time.Time, len(s.jobs))

	for _, j := range s.jobs {
		sched, err := cron.ParseStandard(j.spec)
		if err != nil {
			continue
		}
		result[j.name] = sched.Next(now)
	}

	return result
}

func (s *Service) wrap(j job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()

		j.run(ctx)
	}
}

func (s *Service) tick(ctx context.Context) {
	s.ticker.Tick(ctx)
}

func (s *Service) sweep(ctx context.Context) {
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		return
	}

	slog.Debug("Sweep finished",
		"prompts", len(res.Prompts),
		"missed", len(res.Missed),
		"settled", res.Settled)
}

func (s *Service) report(kind report.Kind) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := s.reporter.Send(ctx, kind); err != nil {
			slog.Error("Failed to send report", "kind", kind, "error", err)
		}
	}
}

// slogLogger adapts cron's logger to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

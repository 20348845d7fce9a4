package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"medremind/app/client/messenger"
	"medremind/app/config"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/util/clock"
	"time"

	"github.com/samber/do"
)

// Service re-prompts the patient about unconfirmed doses and closes the
// ones that ran out of attempts.
type Service struct {
	patient     config.Patient
	grace       time.Duration
	maxAttempts int
	ledger      *ledger.Service
	sender      messenger.Sender
	clock       clock.Clock
	metrics     *metrics.Service
}

// Prompt is a retry message produced by a sweep.
type Prompt struct {
	Entry ledger.PendingEntry
	Text  string
}

// Result summarizes one sweep.
type Result struct {
	Prompts []Prompt
	Missed  []ledger.PendingEntry
	Settled int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Patient,
		cfg.Reminders,
		do.MustInvoke[*ledger.Service](di),
		do.MustInvoke[messenger.Sender](di),
		do.MustInvoke[clock.Clock](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	patient config.Patient,
	reminders config.Reminders,
	ledgerSvc *ledger.Service,
	sender messenger.Sender,
	clk clock.Clock,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		patient:     patient,
		grace:       reminders.Grace,
		maxAttempts: reminders.MaxAttempts,
		ledger:      ledgerSvc,
		sender:      sender,
		clock:       clk,
		metrics:     metricsSvc,
	}
}

// Sweep walks today's pending entries in one ledger write, then sends the
// retry prompts it produced.
func (s *Service) Sweep(ctx context.Context) (Result, error) {
	now := s.clock.Now()

	result, err := s.plan(ctx, now)
	if err != nil {
		s.metrics.LedgerFailures.WithLabelValues("sweep").Inc()
		return Result{}, err
	}

	for _, p := range result.Prompts {
		if err := s.sender.Send(ctx, s.patient.To, p.Text); err != nil {
			s.metrics.SendFailures.WithLabelValues("retry").Inc()
			slog.Error("Failed to send retry prompt",
				"medication", p.Entry.Medication,
				"time", p.Entry.Time,
				"attempt", p.Entry.Attempts,
				"error", err)
			continue
		}

		s.metrics.Retries.Inc()
		slog.Info("Retry prompt sent",
			"medication", p.Entry.Medication,
			"time", p.Entry.Time,
			"attempt", p.Entry.Attempts)
	}

	for _, m := range result.Missed {
		s.metrics.Missed.Inc()
		slog.Warn("Dose marked missed", "medication", m.Medication, "time", m.Time, "date", m.Date)
	}

	return result, nil
}

func (s *Service) plan(ctx context.Context, now time.Time) (Result, error) {
	var result Result
	today := clock.Date(now)

	err := s.ledger.Update(ctx, func(l *ledger.Ledger) (bool, error) {
		kept := make([]ledger.PendingEntry, 0, len(l.Pending))
		changed := false

		for _, p := range l.Pending {
			if p.Date != today || p.Status != ledger.StatusPending {
				kept = append(kept, p)
				continue
			}

			if l.IsSettled(p.Medication, p.Date) {
				result.Settled++
				changed = true
				continue
			}

			slot, err := clock.At(p.Date, p.Time, now.Location())
			if err != nil {
				slog.Warn("Skipping pending entry with invalid time", "entry", p, "error", err)
				kept = append(kept, p)
				continue
			}

			if now.Sub(slot) < s.grace {
				kept = append(kept, p)
				continue
			}

			changed = true
			if p.Attempts < s.maxAttempts {
				p.Attempts++
				result.Prompts = append(result.Prompts, Prompt{Entry: p, Text: s.compose(now, p)})
			} else {
				p.Status = ledger.StatusMissed
				result.Missed = append(result.Missed, p)
			}

			kept = append(kept, p)
		}

		l.Pending = kept

		return changed, nil
	})

	return result, err
}

func (s *Service) compose(now time.Time, p ledger.PendingEntry) string {
	return fmt.Sprintf(
		"%s Olá %s, você tomou o *%s* das *%s*?\nTentativa %d. Responda com 'tomei o %s' ou 'não tomei'.",
		clock.Greeting(now), s.patient.Name, p.Medication, p.Time, p.Attempts, p.Medication)
}

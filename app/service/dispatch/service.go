package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"medremind/app/client/messenger"
	"medremind/app/config"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"medremind/app/util/mylog"
	"sync"

	"github.com/samber/do"
)

// Service turns due reminder triggers into messages and pending entries.
type Service struct {
	to      string
	meds    schedule.Source
	ledger  *ledger.Service
	sender  messenger.Sender
	clock   clock.Clock
	metrics *metrics.Service

	mu    sync.Mutex
	fired map[string]string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Patient.To,
		do.MustInvoke[*schedule.Service](di),
		do.MustInvoke[*ledger.Service](di),
		do.MustInvoke[messenger.Sender](di),
		do.MustInvoke[clock.Clock](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	to string,
	meds schedule.Source,
	ledgerSvc *ledger.Service,
	sender messenger.Sender,
	clk clock.Clock,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		to:      to,
		meds:    meds,
		ledger:  ledgerSvc,
		sender:  sender,
		clock:   clk,
		metrics: metricsSvc,
		fired:   make(map[string]string),
	}
}

// Tick fires every reminder due at the current minute and returns how many fired.
func (s *Service) Tick(ctx context.Context) int {
	now := s.clock.Now()
	triggers := schedule.DueTriggers(s.meds.Medications(), now)

	fired := 0
	for _, trig := range triggers {
		if !s.claim(trig, clock.Date(now)) {
			continue
		}

		if s.Dispatch(ctx, trig) {
			fired++
		}
	}

	if fired == 0 {
		slog.Debug("No reminders due this minute", "time", clock.Minute(now))
	}

	return fired
}

// claim records a trigger as fired; false if it already fired.
func (s *Service) claim(trig schedule.Trigger, today string) bool {
	key := fmt.Sprintf("%s|%s|%s|%d", trig.Dose.Medication.Name, trig.Dose.Date, trig.Dose.Time, trig.Offset)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, date := range s.fired {
		if date < today {
			delete(s.fired, k)
		}
	}

	if _, ok := s.fired[key]; ok {
		return false
	}
	s.fired[key] = trig.Dose.Date

	return true
}

// Dispatch sends one reminder and records the pending entry. A failed send
// is logged; the pending entry is recorded regardless. Reminders for a slot
// that is already confirmed are skipped.
func (s *Service) Dispatch(ctx context.Context, trig schedule.Trigger) bool {
	dose := trig.Dose
	if s.ledger.Snapshot(ctx).SlotTaken(dose.Medication.Name, dose.Date, dose.Time) {
		slog.Debug("Dose already confirmed, skipping reminder",
			"medication", dose.Medication.Name,
			"time", dose.Time,
			"offset", trig.Offset.String())
		return false
	}

	text := Compose(trig)

	if err := s.sender.Send(ctx, s.to, text); err != nil {
		s.metrics.SendFailures.WithLabelValues("reminder").Inc()
		slog.Error("Failed to send reminder",
			"medication", trig.Dose.Medication.Name,
			"time", trig.Dose.Time,
			"offset", trig.Offset.String(),
			"error", err)
	} else {
		s.metrics.RemindersSent.WithLabelValues(trig.Offset.String()).Inc()
		slog.Info("Reminder sent", "text", text, mylog.Notify())
	}

	entry, err := s.ledger.UpsertPending(ctx, dose.Medication.Name, dose.Date, dose.Time)
	if errors.Is(err, ledger.ErrSettled) {
		slog.Debug("Medication settled today, no pending entry", "medication", dose.Medication.Name)
		return true
	}
	if err != nil {
		s.metrics.LedgerFailures.WithLabelValues("upsert_pending").Inc()
		slog.Error("Failed to record pending dose",
			"medication", trig.Dose.Medication.Name,
			"time", trig.Dose.Time,
			"error", err)
		return true
	}

	slog.Debug("Pending dose recorded", "entry", entry)

	return true
}

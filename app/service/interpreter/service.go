package interpreter

import (
	"context"
	"fmt"
	"log/slog"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service turns free-text replies into ledger changes and a single answer.
type Service struct {
	meds    schedule.Source
	ledger  *ledger.Service
	clock   clock.Clock
	picker  Picker
	metrics *metrics.Service
	history *History
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*schedule.Service](di),
		do.MustInvoke[*ledger.Service](di),
		do.MustInvoke[clock.Clock](di),
		RandomPicker(),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	meds schedule.Source,
	ledgerSvc *ledger.Service,
	clk clock.Clock,
	picker Picker,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		meds:    meds,
		ledger:  ledgerSvc,
		clock:   clk,
		picker:  picker,
		metrics: metricsSvc,
		history: NewHistory(),
	}
}

// Reply classifies text from sender, applies its effect and returns the answer.
func (s *Service) Reply(ctx context.Context, sender, text string) string {
	match := Classify(text)
	s.metrics.Replies.WithLabelValues(string(match.Intent)).Inc()

	slog.Debug("Reply classified",
		"sender", sender,
		"text", text,
		"intent", match.Intent,
		"medication", match.Medication,
		"history", s.history.format(sender))

	now := s.clock.Now()
	greeting := clock.Greeting(now)

	switch match.Intent {
	case IntentCorrect:
		return s.handleCorrect(ctx, sender, match, text)
	case IntentDeny:
		return s.handleDeny(ctx, sender, match, text)
	case IntentConfirm:
		return s.handleConfirm(ctx, sender, match, text, greeting)
	case IntentPending:
		s.history.add(sender, turn{Intent: IntentPending, Timestamp: now})
		return pendingList(s.PendingToday(ctx))
	case IntentConfirmed:
		s.history.add(sender, turn{Intent: IntentConfirmed, Timestamp: now})
		return takenList(s.ConfirmedToday(ctx))
	default:
		s.history.add(sender, turn{Intent: IntentFallback, Timestamp: now})
		return s.fallback(greeting)
	}
}

func (s *Service) handleCorrect(ctx context.Context, sender string, match Match, text string) string {
	name := s.resolve(match.Medication, text)
	if name == "" {
		return askWhichCorrect
	}

	at, err := parseMinute(match.Time)
	if err != nil {
		slog.Debug("Invalid corrected time", "time", match.Time, "error", err)
		return s.fallback(clock.Greeting(s.clock.Now()))
	}

	entry, existed, err := s.CorrectDose(ctx, name, at)
	if err != nil {
		return s.saveFailed("correct", err)
	}

	s.history.add(sender, turn{Intent: IntentCorrect, Medication: name, Time: at, Timestamp: s.clock.Now()})

	if !existed {
		return correctedAsNew(entry.Medication, entry.Time)
	}

	return corrected(entry.Medication, entry.Time)
}

func (s *Service) handleDeny(ctx context.Context, sender string, match Match, text string) string {
	name := s.resolve(match.Medication, text)
	if name == "" {
		last, ok := s.history.lastMedication(sender)
		if !ok {
			return askWhichRevoke
		}
		name = last
	}

	count, err := s.UndoDose(ctx, name)
	if err != nil {
		return s.saveFailed("revoke", err)
	}

	s.history.add(sender, turn{Intent: IntentDeny, Medication: name, Timestamp: s.clock.Now()})

	if count == 0 {
		return nothingToRevoke(name)
	}

	return revoked(name)
}

func (s *Service) handleConfirm(ctx context.Context, sender string, match Match, text, greeting string) string {
	name := s.resolve(match.Medication, text)
	if name == "" {
		oldest, ok := s.oldestPending(ctx)
		if !ok {
			return askWhichTaken
		}
		name = oldest.Medication
	}

	var at string
	if match.Time != "" {
		parsed, err := parseMinute(match.Time)
		if err != nil {
			slog.Debug("Ignoring invalid time in confirmation", "time", match.Time, "error", err)
		}
		at = parsed
	}

	entry, err := s.ConfirmDose(ctx, name, at)
	if err != nil {
		return s.saveFailed("confirm", err)
	}

	s.history.add(sender, turn{Intent: IntentConfirm, Medication: name, Time: entry.Time, Timestamp: s.clock.Now()})

	return s.acknowledge(greeting, entry.Medication, entry.Time)
}

func (s *Service) saveFailed(operation string, err error) string {
	s.metrics.LedgerFailures.WithLabelValues(operation).Inc()
	slog.Error("Failed to update ledger from reply", "operation", operation, "error", err)

	return saveFailed
}

// resolve finds the medication a message refers to: a known name written in
// full, then the fuzzy-matched capture, then the capture as typed.
func (s *Service) resolve(capture, text string) string {
	names := pie.Map(s.meds.Medications(), func(m *schedule.Medication) string {
		return m.Name
	})

	if name, ok := mentionedName(text, names); ok {
		return name
	}
	if capture == "" {
		return ""
	}

	return ResolveName(capture, names)
}

// ResolveMedication maps a typed name to a scheduled medication name.
func (s *Service) ResolveMedication(raw string) string {
	return s.resolve(raw, raw)
}

func (s *Service) oldestPending(ctx context.Context) (ledger.PendingEntry, bool) {
	pending := s.ledger.Snapshot(ctx).PendingOn(clock.Date(s.clock.Now()), ledger.StatusPending)
	if len(pending) == 0 {
		return ledger.PendingEntry{}, false
	}

	return pending[0], true
}

// PendingToday lists today's doses without a confirmation for their slot.
func (s *Service) PendingToday(ctx context.Context) []schedule.Dose {
	now := s.clock.Now()
	doses := schedule.ActiveDoses(s.meds.Medications(), now)

	return s.ledger.Snapshot(ctx).Outstanding(doses)
}

// ConfirmedToday lists today's active confirmations.
func (s *Service) ConfirmedToday(ctx context.Context) []ledger.Taken {
	return s.ledger.Snapshot(ctx).Taken(clock.Date(s.clock.Now()))
}

// ConfirmDose records that name was taken today at the given HH:MM, or now
// when at is empty.
func (s *Service) ConfirmDose(ctx context.Context, name, at string) (ledger.ConfirmationEntry, error) {
	now := s.clock.Now()
	if at == "" {
		at = clock.Minute(now)
	}

	return s.ledger.Confirm(ctx, ledger.ConfirmRequest{
		Medication: name,
		Date:       clock.Date(now),
		Slot:       s.chooseSlot(ctx, name, now),
		Time:       at,
	})
}

// CorrectDose rewrites the time of today's confirmation of name.
func (s *Service) CorrectDose(ctx context.Context, name, at string) (ledger.ConfirmationEntry, bool, error) {
	now := s.clock.Now()

	return s.ledger.Correct(ctx, ledger.CorrectRequest{
		Medication: name,
		Date:       clock.Date(now),
		Time:       at,
		Slot:       s.chooseSlot(ctx, name, now),
	})
}

// UndoDose withdraws today's confirmations of name.
func (s *Service) UndoDose(ctx context.Context, name string) (int, error) {
	return s.ledger.Revoke(ctx, name, clock.Date(s.clock.Now()))
}

// chooseSlot picks the scheduled time a confirmation settles: the oldest
// pending slot of the medication today, else its active slot closest to
// now, else the current minute.
func (s *Service) chooseSlot(ctx context.Context, name string, now time.Time) string {
	today := clock.Date(now)

	for _, p := range s.ledger.Snapshot(ctx).PendingOn(today, ledger.StatusPending) {
		if fold(p.Medication) == fold(name) {
			return p.Time
		}
	}

	var (
		best     string
		bestDist time.Duration
	)
	for _, d := range schedule.ActiveDoses(s.meds.Medications(), now) {
		if fold(d.Medication.Name) != fold(name) {
			continue
		}

		dist := d.At.Sub(now).Abs()
		if best == "" || dist < bestDist {
			best, bestDist = d.Time, dist
		}
	}
	if best != "" {
		return best
	}

	return clock.Minute(now)
}

func parseMinute(raw string) (string, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return "", oops.Errorf("invalid time %q: %w", raw, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", oops.Errorf("time out of range: %q", raw)
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

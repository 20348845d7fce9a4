package ledger

import (
	"context"
	"errors"
	"log/slog"
	"medremind/app/util/clock"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service owns the ledger. Every read-modify-write runs under one mutex,
// so the scheduler, the sweeper and reply handlers never interleave.
type Service struct {
	store Store
	clock clock.Clock

	mu sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[Store](di), do.MustInvoke[clock.Clock](di)), nil
}

func NewService(store Store, clk clock.Clock) *Service {
	return &Service{
		store: store,
		clock: clk,
	}
}

func (s *Service) load(ctx context.Context) (*Ledger, error) {
	l, err := s.store.Load(ctx)
	if err != nil {
		return nil, oops.Errorf("failed to load ledger: %w", err)
	}
	if l == nil {
		return Empty(), nil
	}

	return l.normalize(), nil
}

// Snapshot returns a copy of the current ledger. An unreadable store reads
// as an empty ledger.
func (s *Service) Snapshot(ctx context.Context) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load(ctx)
	if err != nil {
		slog.Error("Failed to read ledger, showing it empty", "error", err)
		return Empty()
	}

	return l.Clone()
}

// Update applies fn to the ledger and saves it once if fn reports a change.
// Nothing is saved when the store could not be read.
func (s *Service) Update(ctx context.Context, fn func(l *Ledger) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load(ctx)
	if err != nil {
		return err
	}

	changed, err := fn(l)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err = s.store.Save(ctx, l.normalize()); err != nil {
		return oops.Errorf("failed to save ledger: %w", err)
	}

	return nil
}

// ErrSettled is returned by UpsertPending when the medication is already
// confirmed on that date.
var ErrSettled = errors.New("dose already confirmed")

// UpsertPending creates the pending entry of a dose with one attempt, or
// counts one more notice on the existing entry.
func (s *Service) UpsertPending(ctx context.Context, medication, date, slot string) (PendingEntry, error) {
	var result PendingEntry

	err := s.Update(ctx, func(l *Ledger) (bool, error) {
		if l.IsSettled(medication, date) {
			return false, ErrSettled
		}

		if idx := l.findPending(medication, date, slot); idx >= 0 {
			l.Pending[idx].Notices++
			result = l.Pending[idx]
			return true, nil
		}

		result = PendingEntry{
			Medication: medication,
			Time:       slot,
			Date:       date,
			Status:     StatusPending,
			Attempts:   1,
			Notices:    1,
		}
		l.Pending = append(l.Pending, result)

		return true, nil
	})

	return result, err
}

// Confirm appends a confirmation and drops the medication's pending entries
// for that day.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmationEntry, error) {
	entry := s.newEntry(KindConfirm, req.Medication, req.Date, req.Slot, req.Time)

	err := s.Update(ctx, func(l *Ledger) (bool, error) {
		l.Confirmations = append(l.Confirmations, entry)
		removed := l.removePending(req.Medication, req.Date)

		slog.Info("Dose confirmed",
			"medication", req.Medication,
			"date", req.Date,
			"slot", req.Slot,
			"time", req.Time,
			"pending_removed", removed)

		return true, nil
	})

	return entry, err
}

// Revoke withdraws every active confirmation of a medication on date.
// It returns how many confirmations were withdrawn.
func (s *Service) Revoke(ctx context.Context, medication, date string) (int, error) {
	var revoked int

	err := s.Update(ctx, func(l *Ledger) (bool, error) {
		for _, t := range l.Taken(date) {
			if sameMedication(t.Medication, medication) {
				revoked++
			}
		}
		if revoked == 0 {
			return false, nil
		}

		l.Confirmations = append(l.Confirmations,
			s.newEntry(KindRevoke, medication, date, "", clock.Minute(s.clock.Now())))

		slog.Info("Dose confirmation revoked", "medication", medication, "date", date, "count", revoked)

		return true, nil
	})

	return revoked, err
}

// Correct rewrites the time of the latest confirmation of a medication on
// date. Without a confirmation to correct it records a new one. The bool
// result reports whether an existing confirmation was corrected.
func (s *Service) Correct(ctx context.Context, req CorrectRequest) (ConfirmationEntry, bool, error) {
	var (
		entry     ConfirmationEntry
		corrected bool
	)

	err := s.Update(ctx, func(l *Ledger) (bool, error) {
		slot := req.Slot
		taken := l.Taken(req.Date)
		if idx := lastIndex(taken, req.Medication); idx >= 0 {
			slot = taken[idx].slot()
			corrected = true
		}

		entry = s.newEntry(KindCorrect, req.Medication, req.Date, slot, req.Time)
		l.Confirmations = append(l.Confirmations, entry)
		l.removePending(req.Medication, req.Date)

		slog.Info("Dose time corrected",
			"medication", req.Medication,
			"date", req.Date,
			"time", req.Time,
			"existing", corrected)

		return true, nil
	})

	return entry, corrected, err
}

func (s *Service) newEntry(kind Kind, medication, date, slot, at string) ConfirmationEntry {
	return ConfirmationEntry{
		ID:         uuid.NewString(),
		Medication: medication,
		Date:       date,
		Slot:       slot,
		Time:       at,
		Confirmed:  kind != KindRevoke,
		Kind:       kind,
		RecordedAt: s.clock.Now().Format(time.RFC3339),
	}
}

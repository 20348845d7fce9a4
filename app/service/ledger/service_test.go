package ledger

import (
	"context"
	"errors"
	"medremind/app/util/clock"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const today = "2026-03-10"

func newTestService(t *testing.T) (*Service, *clock.Fixed) {
	t.Helper()

	clk := clock.NewFixed(time.Date(2026, 3, 10, 7, 45, 0, 0, time.UTC))
	store := NewJSONStore(filepath.Join(t.TempDir(), "historico.json"))

	return NewService(store, clk), clk
}

func TestUpsertPendingIsKeyed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, StatusPending, first.Status)

	second, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Attempts)
	assert.Equal(t, 2, second.Notices)

	_, err = svc.UpsertPending(ctx, "Lipidil", today, "20:00")
	require.NoError(t, err)

	l := svc.Snapshot(ctx)
	assert.Len(t, l.Pending, 2)
}

func TestConfirmRemovesPendingAndSettles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.NoError(t, err)
	_, err = svc.UpsertPending(ctx, "Glifage", today, "08:00")
	require.NoError(t, err)

	entry, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: "08:00", Time: "07:47"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.Confirmed)
	assert.Equal(t, KindConfirm, entry.Kind)

	l := svc.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, "Glifage", l.Pending[0].Medication)

	assert.True(t, l.IsSettled("lipidil", today))
	assert.True(t, l.SlotTaken("Lipidil", today, "08:00"))
	assert.False(t, l.SlotTaken("Lipidil", today, "20:00"))
	assert.False(t, l.IsSettled("Lipidil", "2026-03-11"))
}

func TestUpsertPendingRefusesSettledMedication(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: "08:00", Time: "07:50"})
	require.NoError(t, err)

	_, err = svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.ErrorIs(t, err, ErrSettled)
	assert.Empty(t, svc.Snapshot(ctx).Pending)

	_, err = svc.UpsertPending(ctx, "Lipidil", "2026-03-11", "08:00")
	require.NoError(t, err)
}

func TestUpdateDoesNotSaveAfterFailedLoad(t *testing.T) {
	store := &brokenStore{}
	svc := NewService(store, clock.NewFixed(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	_, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.Error(t, err)
	assert.Zero(t, store.saves)

	assert.Equal(t, Empty(), svc.Snapshot(ctx))
}

type brokenStore struct {
	saves int
}

func (s *brokenStore) Load(context.Context) (*Ledger, error) {
	return nil, errors.New("disk I/O error")
}

func (s *brokenStore) Save(context.Context, *Ledger) error {
	s.saves++
	return nil
}

func (s *brokenStore) Close() error {
	return nil
}

func TestRevokeWithdrawsAllConfirmationsOfTheDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, slot := range []string{"08:00", "20:00"} {
		_, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: slot, Time: slot})
		require.NoError(t, err)
	}
	_, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: "2026-03-09", Slot: "08:00", Time: "08:00"})
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, "LIPIDIL", today)
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	l := svc.Snapshot(ctx)
	assert.Empty(t, l.Taken(today))
	assert.Len(t, l.Taken("2026-03-09"), 1)
	// the log is append-only
	assert.Len(t, l.Confirmations, 4)

	revoked, err = svc.Revoke(ctx, "Lipidil", today)
	require.NoError(t, err)
	assert.Zero(t, revoked)
	assert.Len(t, svc.Snapshot(ctx).Confirmations, 4)
}

func TestConfirmAfterRevokeCountsAgain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: "08:00", Time: "08:01"})
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, "Lipidil", today)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: "08:00", Time: "08:30"})
	require.NoError(t, err)

	taken := svc.Snapshot(ctx).Taken(today)
	require.Len(t, taken, 1)
	assert.Equal(t, "08:30", taken[0].Time)
}

func TestCorrectRewritesLatestConfirmation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, ConfirmRequest{Medication: "Lipidil", Date: today, Slot: "08:00", Time: "08:02"})
	require.NoError(t, err)

	entry, corrected, err := svc.Correct(ctx, CorrectRequest{Medication: "Lipidil", Date: today, Time: "07:30", Slot: "20:00"})
	require.NoError(t, err)
	assert.True(t, corrected)
	assert.Equal(t, "08:00", entry.Slot)
	assert.Equal(t, KindCorrect, entry.Kind)

	taken := svc.Snapshot(ctx).Taken(today)
	require.Len(t, taken, 1)
	assert.Equal(t, "07:30", taken[0].Time)
	assert.Equal(t, "08:00", taken[0].Slot)
}

func TestCorrectWithoutConfirmationRecordsOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.NoError(t, err)

	_, corrected, err := svc.Correct(ctx, CorrectRequest{Medication: "Lipidil", Date: today, Time: "07:50", Slot: "08:00"})
	require.NoError(t, err)
	assert.False(t, corrected)

	l := svc.Snapshot(ctx)
	assert.True(t, l.SlotTaken("Lipidil", today, "08:00"))
	assert.Empty(t, l.Pending)
}

func TestUpdateSkipsSaveWithoutChanges(t *testing.T) {
	store := &countingStore{Store: NewJSONStore(filepath.Join(t.TempDir(), "h.json"))}
	svc := NewService(store, clock.NewFixed(time.Now()))

	require.NoError(t, svc.Update(context.Background(), func(l *Ledger) (bool, error) {
		return false, nil
	}))
	assert.Zero(t, store.saves)

	require.NoError(t, svc.Update(context.Background(), func(l *Ledger) (bool, error) {
		l.Pending = append(l.Pending, PendingEntry{Medication: "A", Date: today, Time: "08:00", Attempts: 1})
		return true, nil
	}))
	assert.Equal(t, 1, store.saves)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpsertPending(ctx, "Lipidil", today, "08:00")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	l := svc.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, 20, l.Pending[0].Notices)
}

type countingStore struct {
	Store
	saves int
}

func (s *countingStore) Save(ctx context.Context, l *Ledger) error {
	s.saves++
	return s.Store.Save(ctx, l)
}

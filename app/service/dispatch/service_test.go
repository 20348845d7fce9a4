package dispatch

import (
	"context"
	"errors"
	"medremind/app/client/messenger"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lipidil = `[{"nome":"Lipidil","dosagem":"10mg","data_inicio":"2026-03-01","duracao_meses":1,
	"frequencia":"diario","horarios":[{"hora":"08:00","periodo":"manhã"}],"obs":"em jejum"}]`

type fixture struct {
	svc    *Service
	sender *messenger.Recorder
	ledger *ledger.Service
	clock  *clock.Fixed
	stats  *metrics.Service
}

func newFixture(t *testing.T, doc string, now time.Time) *fixture {
	t.Helper()

	meds, err := schedule.NewService("").Parse([]byte(doc))
	require.NoError(t, err)

	clk := clock.NewFixed(now)
	sender := &messenger.Recorder{}
	ledgerSvc := ledger.NewService(ledger.NewJSONStore(filepath.Join(t.TempDir(), "historico.json")), clk)
	stats := metrics.NewService()

	return &fixture{
		svc:    NewService("whatsapp:+5511", schedule.Static(meds), ledgerSvc, sender, clk, stats),
		sender: sender,
		ledger: ledgerSvc,
		clock:  clk,
		stats:  stats,
	}
}

func TestTickSendsEachOffsetOnce(t *testing.T) {
	f := newFixture(t, lipidil, time.Date(2026, 3, 10, 7, 40, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		f.svc.Tick(ctx)
		f.clock.Advance(time.Minute)
	}

	sent := f.sender.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "whatsapp:+5511", sent[0].To)
	assert.Equal(t, "⏳ Em 15 minutos, tome *Lipidil (manhã)* - 10mg (08:00).\n📌 Obs: em jejum", sent[0].Body)
	assert.Contains(t, sent[1].Body, "Faltam 5 minutos")
	assert.Contains(t, sent[2].Body, "Hora de tomar *Lipidil (manhã)*")

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, ledger.PendingEntry{
		Medication: "Lipidil",
		Time:       "08:00",
		Date:       "2026-03-10",
		Status:     ledger.StatusPending,
		Attempts:   1,
		Notices:    3,
	}, l.Pending[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.stats.RemindersSent.WithLabelValues("15min")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.stats.RemindersSent.WithLabelValues("agora")))
}

func TestTickAt0745RecordsOnePendingEntry(t *testing.T) {
	f := newFixture(t, lipidil, time.Date(2026, 3, 10, 7, 45, 0, 0, time.UTC))
	ctx := context.Background()

	assert.Equal(t, 1, f.svc.Tick(ctx))

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, 1, l.Pending[0].Attempts)
}

func TestTickDoesNotRefireWithinTheSameMinute(t *testing.T) {
	f := newFixture(t, lipidil, time.Date(2026, 3, 10, 7, 45, 10, 0, time.UTC))
	ctx := context.Background()

	assert.Equal(t, 1, f.svc.Tick(ctx))
	f.clock.Advance(20 * time.Second)
	assert.Equal(t, 0, f.svc.Tick(ctx))
	assert.Len(t, f.sender.Sent(), 1)
}

func TestSendFailureStillRecordsPending(t *testing.T) {
	f := newFixture(t, lipidil, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	f.sender.Err = errors.New("twilio down")
	ctx := context.Background()

	assert.Equal(t, 1, f.svc.Tick(ctx))

	assert.Len(t, f.ledger.Snapshot(ctx).Pending, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.stats.SendFailures.WithLabelValues("reminder")))
}

func TestConfirmedDoseGetsNoFurtherReminders(t *testing.T) {
	f := newFixture(t, lipidil, time.Date(2026, 3, 10, 7, 45, 0, 0, time.UTC))
	ctx := context.Background()

	assert.Equal(t, 1, f.svc.Tick(ctx))

	f.clock.Set(time.Date(2026, 3, 10, 7, 50, 0, 0, time.UTC))
	_, err := f.ledger.Confirm(ctx, ledger.ConfirmRequest{
		Medication: "Lipidil", Date: "2026-03-10", Slot: "08:00", Time: "07:50",
	})
	require.NoError(t, err)

	for i := 0; i <= 10; i++ {
		assert.Equal(t, 0, f.svc.Tick(ctx))
		f.clock.Advance(time.Minute)
	}

	assert.Len(t, f.sender.Sent(), 1)

	l := f.ledger.Snapshot(ctx)
	assert.True(t, l.IsSettled("Lipidil", "2026-03-10"))
	assert.Empty(t, l.Pending)
}

func TestOtherSlotIsRemindedWithoutPendingEntry(t *testing.T) {
	f := newFixture(t, `[{"nome":"Lipidil","dosagem":"10mg","data_inicio":"2026-03-01","duracao_meses":1,
		"frequencia":"diario","horarios":[{"hora":"08:00"},{"hora":"20:00"}]}]`,
		time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.ledger.Confirm(ctx, ledger.ConfirmRequest{
		Medication: "Lipidil", Date: "2026-03-10", Slot: "08:00", Time: "08:02",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.Tick(ctx))
	require.Len(t, f.sender.Sent(), 1)
	assert.Contains(t, f.sender.Sent()[0].Body, "(20:00)")
	assert.Empty(t, f.ledger.Snapshot(ctx).Pending)
}

func TestComposeWithoutPeriodOrNote(t *testing.T) {
	meds, err := schedule.NewService("").Parse([]byte(`[{"nome":"Glifage","dosagem":"500mg",
		"data_inicio":"2026-03-01","duracao_meses":1,"frequencia":"diario","horarios":[{"hora":"12:00"}]}]`))
	require.NoError(t, err)

	doses := schedule.ActiveDoses(meds, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.Len(t, doses, 1)

	assert.Equal(t, "🚨 Hora de tomar *Glifage* - 500mg! Tome com água. (12:00)",
		Compose(schedule.Trigger{Dose: doses[0], Offset: schedule.AtDose}))
}

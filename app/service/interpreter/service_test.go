package interpreter

import (
	"context"
	"medremind/app/client/messenger"
	"medremind/app/service/dispatch"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sender = "whatsapp:+5511"
	today  = "2026-03-10"
)

const scheduleDoc = `[
	{"nome":"Lipidil","dosagem":"10mg","data_inicio":"2026-03-10","duracao_meses":1,
	 "frequencia":"diario","horarios":[{"hora":"08:00"}]},
	{"nome":"Glifage","dosagem":"500mg","data_inicio":"2026-03-01","duracao_meses":2,
	 "frequencia":"diario","horarios":[{"hora":"12:00","periodo":"almoço"},{"hora":"20:00","periodo":"jantar"}]}
]`

type fixture struct {
	svc    *Service
	meds   schedule.Static
	ledger *ledger.Service
	clock  *clock.Fixed
}

func newFixture(t *testing.T, hour, minute int) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	meds, err := schedule.NewService("").Parse([]byte(scheduleDoc))
	require.NoError(t, err)

	clk := clock.NewFixed(time.Date(2026, 3, 10, hour, minute, 0, 0, loc))
	ledgerSvc := ledger.NewService(ledger.NewJSONStore(filepath.Join(t.TempDir(), "historico.json")), clk)

	return &fixture{
		svc:    NewService(schedule.Static(meds), ledgerSvc, clk, FixedPicker(0), metrics.NewService()),
		meds:   meds,
		ledger: ledgerSvc,
		clock:  clk,
	}
}

func TestLipidilScenario(t *testing.T) {
	f := newFixture(t, 7, 45)
	ctx := context.Background()

	sent := &messenger.Recorder{}
	reminders := dispatch.NewService(sender, f.meds, f.ledger, sent, f.clock, metrics.NewService())

	assert.Equal(t, 1, reminders.Tick(ctx))
	require.Len(t, sent.Sent(), 1)
	assert.Contains(t, sent.Sent()[0].Body, "Em 15 minutos")

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, 1, l.Pending[0].Attempts)

	f.clock.Advance(5 * time.Minute)
	reply := f.svc.Reply(ctx, sender, "tomei o Lipidil")
	assert.Equal(t, "☀️ Bom dia!\n✅ Show! Marquei que você tomou *Lipidil* às *07:50*. 👌", reply)

	l = f.ledger.Snapshot(ctx)
	assert.Empty(t, l.Pending)
	require.Len(t, l.Confirmations, 1)
	assert.Equal(t, "08:00", l.Confirmations[0].Slot)
	assert.Equal(t, "07:50", l.Confirmations[0].Time)
	assert.Equal(t, today, l.Confirmations[0].Date)

	for i := 0; i <= 10; i++ {
		assert.Zero(t, reminders.Tick(ctx))
		f.clock.Advance(time.Minute)
	}
	assert.Len(t, sent.Sent(), 1)
	assert.Empty(t, f.ledger.Snapshot(ctx).Pending)

	f.svc.meds = schedule.Static(f.meds[:1])
	assert.Equal(t, "🎉 Nenhum remédio pendente hoje!", f.svc.Reply(ctx, sender, "quais faltam"))
}

func TestConfirmKeepsTheTimeGiven(t *testing.T) {
	f := newFixture(t, 8, 20)
	ctx := context.Background()

	reply := f.svc.Reply(ctx, sender, "tomei o Lipidil às 7:30")
	assert.Contains(t, reply, "*Lipidil* às *07:30*")

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Confirmations, 1)
	assert.Equal(t, "07:30", l.Confirmations[0].Time)
	assert.Equal(t, "08:00", l.Confirmations[0].Slot)
}

func TestConfirmWithInvalidTimeUsesNow(t *testing.T) {
	f := newFixture(t, 8, 20)
	ctx := context.Background()

	f.svc.Reply(ctx, sender, "tomei o Lipidil às 31:90")

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Confirmations, 1)
	assert.Equal(t, "08:20", l.Confirmations[0].Time)
}

func TestPendingQueryListsUnconfirmedSlotsSorted(t *testing.T) {
	f := newFixture(t, 13, 0)
	ctx := context.Background()

	_, err := f.svc.ConfirmDose(ctx, "Glifage", "12:10")
	require.NoError(t, err)

	assert.Equal(t,
		"📋 Ainda falta tomar:\n🔔 Glifage (jantar) às 20:00\n🔔 Lipidil às 08:00",
		f.svc.Reply(ctx, sender, "quais faltam?"))
}

func TestBareAffirmativeUsesOldestPending(t *testing.T) {
	f := newFixture(t, 12, 5)
	ctx := context.Background()

	_, err := f.ledger.UpsertPending(ctx, "Glifage", today, "12:00")
	require.NoError(t, err)
	_, err = f.ledger.UpsertPending(ctx, "Lipidil", today, "08:00")
	require.NoError(t, err)

	reply := f.svc.Reply(ctx, sender, "sim")
	assert.Contains(t, reply, "*Lipidil*")

	l := f.ledger.Snapshot(ctx)
	require.Len(t, l.Pending, 1)
	assert.Equal(t, "Glifage", l.Pending[0].Medication)
}

func TestBareAffirmativeWithoutPendingAsksWhich(t *testing.T) {
	f := newFixture(t, 12, 5)

	assert.Equal(t, "🤔 Qual remédio você tomou mesmo?", f.svc.Reply(context.Background(), sender, "sim"))
	assert.Empty(t, f.ledger.Snapshot(context.Background()).Confirmations)
}

func TestConfirmPicksClosestSlot(t *testing.T) {
	f := newFixture(t, 19, 50)
	ctx := context.Background()

	f.svc.Reply(ctx, sender, "tomei o glifage")

	taken := f.svc.ConfirmedToday(ctx)
	require.Len(t, taken, 1)
	assert.Equal(t, "20:00", taken[0].Slot)
	assert.Equal(t, "19:50", taken[0].Time)
}

func TestConfirmUnknownNameIsTitleCased(t *testing.T) {
	f := newFixture(t, 9, 0)
	ctx := context.Background()

	f.svc.Reply(ctx, sender, "tomei o xyzxyz")

	taken := f.svc.ConfirmedToday(ctx)
	require.Len(t, taken, 1)
	assert.Equal(t, "Xyzxyz", taken[0].Medication)
	assert.Equal(t, "09:00", taken[0].Slot)
}

func TestDenyRevokesConfirmation(t *testing.T) {
	f := newFixture(t, 8, 10)
	ctx := context.Background()

	f.svc.Reply(ctx, sender, "tomei o lipidi")
	require.Len(t, f.svc.ConfirmedToday(ctx), 1)

	assert.Equal(t, "🗑️ Remoção confirmada de *Lipidil*.", f.svc.Reply(ctx, sender, "não tomei o Lipidil"))
	assert.Empty(t, f.svc.ConfirmedToday(ctx))

	assert.Equal(t, "🤷 Não havia confirmação de *Lipidil* hoje.", f.svc.Reply(ctx, sender, "não tomei o Lipidil"))
}

func TestDenyUsesConversationContext(t *testing.T) {
	f := newFixture(t, 8, 10)
	ctx := context.Background()

	assert.Equal(t, "😬 Qual remédio você quer apagar mesmo?", f.svc.Reply(ctx, sender, "errei"))

	f.svc.Reply(ctx, sender, "tomei o glifage")
	assert.Equal(t, "🗑️ Remoção confirmada de *Glifage*.", f.svc.Reply(ctx, sender, "errei"))

	assert.Equal(t, "😬 Qual remédio você quer apagar mesmo?", f.svc.Reply(ctx, "other", "errei"))
}

func TestCorrectRewritesTime(t *testing.T) {
	f := newFixture(t, 8, 30)
	ctx := context.Background()

	f.svc.Reply(ctx, sender, "tomei o lipidil")

	assert.Equal(t, "⏰ Corrigido! *Lipidil* às *07:30*.", f.svc.Reply(ctx, sender, "corrige, tomei o lipidil às 7:30"))

	taken := f.svc.ConfirmedToday(ctx)
	require.Len(t, taken, 1)
	assert.Equal(t, "07:30", taken[0].Time)
	assert.Equal(t, "08:00", taken[0].Slot)

	assert.Equal(t, "🧾 Hoje você tomou:\n✅ Lipidil às 07:30", f.svc.Reply(ctx, sender, "o que já tomei?"))
}

func TestCorrectWithoutConfirmationRecordsOne(t *testing.T) {
	f := newFixture(t, 8, 30)
	ctx := context.Background()

	reply := f.svc.Reply(ctx, sender, "corrige tomei o lipidil as 08:05")
	assert.Equal(t, "🤔 Não achei confirmação de *Lipidil* hoje, então registrei *Lipidil* às *08:05*.", reply)
	assert.Len(t, f.svc.ConfirmedToday(ctx), 1)
}

func TestCorrectWithInvalidTimeFallsBack(t *testing.T) {
	f := newFixture(t, 8, 30)
	ctx := context.Background()

	reply := f.svc.Reply(ctx, sender, "corrige tomei o lipidil às 27:99")
	assert.Contains(t, reply, helpMenu)
	assert.Empty(t, f.svc.ConfirmedToday(ctx))
}

func TestConfirmedQueryEmpty(t *testing.T) {
	f := newFixture(t, 8, 30)
	assert.Equal(t, "📭 Nenhum remédio confirmado hoje.", f.svc.Reply(context.Background(), sender, "confirmados"))
}

func TestFallbackReply(t *testing.T) {
	f := newFixture(t, 15, 0)
	f.svc.picker = FixedPicker(1)

	assert.Equal(t,
		"🌤️ Boa tarde!\n🤖 Ainda não aprendi isso... mas tô tentando!\n"+helpMenu,
		f.svc.Reply(context.Background(), sender, "bom dia robô"))
}

func TestEveryMessageGetsOneReply(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "??", "tomei", "não tomei", "corrige", "quais", "o que tomei", "🙂"} {
		assert.NotEmpty(t, f.svc.Reply(ctx, sender, text), text)
	}
}

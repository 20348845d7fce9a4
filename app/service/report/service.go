package report

import (
	"context"
	"fmt"
	"log/slog"
	"medremind/app/client/messenger"
	"medremind/app/config"
	"medremind/app/service/ledger"
	"medremind/app/service/metrics"
	"medremind/app/service/schedule"
	"medremind/app/util/clock"
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

type Kind string

const (
	Daily    Kind = "daily"
	Weekly   Kind = "weekly"
	Briefing Kind = "briefing"
)

var Kinds = []Kind{Daily, Weekly, Briefing}

// weekDays is the span of the weekly summary, today included.
const weekDays = 7

type Service struct {
	patient config.Patient
	meds    schedule.Source
	ledger  *ledger.Service
	sender  messenger.Sender
	clock   clock.Clock
	metrics *metrics.Service
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Patient,
		do.MustInvoke[*schedule.Service](di),
		do.MustInvoke[*ledger.Service](di),
		do.MustInvoke[messenger.Sender](di),
		do.MustInvoke[clock.Clock](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	patient config.Patient,
	meds schedule.Source,
	ledgerSvc *ledger.Service,
	sender messenger.Sender,
	clk clock.Clock,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		patient: patient,
		meds:    meds,
		ledger:  ledgerSvc,
		sender:  sender,
		clock:   clk,
		metrics: metricsSvc,
	}
}

// Render builds the text of a report without sending it.
func (s *Service) Render(ctx context.Context, kind Kind) (string, error) {
	switch kind {
	case Daily:
		return s.Daily(ctx), nil
	case Weekly:
		return s.Weekly(ctx), nil
	case Briefing:
		return s.Briefing(ctx), nil
	default:
		return "", oops.Errorf("unknown report kind %q", kind)
	}
}

// Send renders a report and delivers it to the patient.
func (s *Service) Send(ctx context.Context, kind Kind) error {
	text, err := s.Render(ctx, kind)
	if err != nil {
		return err
	}

	if err = s.sender.Send(ctx, s.patient.To, text); err != nil {
		s.metrics.SendFailures.WithLabelValues(string(kind)).Inc()
		return oops.Wrapf(err, "failed to send %s report", kind)
	}

	slog.Info("Report sent", "kind", kind)

	return nil
}

// Daily lists today's confirmed doses and the ones marked missed.
func (s *Service) Daily(ctx context.Context) string {
	now := s.clock.Now()
	today := clock.Date(now)
	l := s.ledger.Snapshot(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Relatório (%s) - %s:", clock.Minute(now), s.patient.Name)

	taken := l.Taken(today)
	if len(taken) == 0 {
		b.WriteString("\n😅 Nenhum remédio confirmado hoje.")
	} else {
		b.WriteString("\nVocê tomou:")
		writeTaken(&b, taken)
	}

	if missed := l.PendingOn(today, ledger.StatusMissed); len(missed) > 0 {
		b.WriteString("\n\n⚠️ Sem confirmação:")
		for _, p := range missed {
			fmt.Fprintf(&b, "\n- %s às %s", p.Medication, p.Time)
		}
	}

	return b.String()
}

// Weekly groups the confirmed doses of the last seven days by date.
func (s *Service) Weekly(ctx context.Context) string {
	now := s.clock.Now()
	from := clock.Date(clock.Midnight(now).AddDate(0, 0, -(weekDays - 1)))
	to := clock.Date(now)

	header := fmt.Sprintf("📅 Resumo semanal - %s:", s.patient.Name)

	byDate := s.ledger.Snapshot(ctx).TakenBetween(from, to)
	if len(byDate) == 0 {
		return header + "\n😴 Nenhum remédio confirmado nos últimos 7 dias."
	}

	var b strings.Builder
	b.WriteString(header)
	for _, date := range pie.Sort(pie.Keys(byDate)) {
		fmt.Fprintf(&b, "\n\n🗓️ %s:", date)
		writeTaken(&b, byDate[date])
	}

	return b.String()
}

// Briefing greets the patient and lists what is still to be taken today.
func (s *Service) Briefing(ctx context.Context) string {
	now := s.clock.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "%s Agora são %s. Vamos iniciar o dia!\n\n", clock.Greeting(now), clock.Minute(now))

	doses := s.ledger.Snapshot(ctx).Outstanding(schedule.ActiveDoses(s.meds.Medications(), now))
	if len(doses) == 0 {
		b.WriteString("🎉 Parabéns! Você já tomou todos os remédios do dia.")
		return b.String()
	}

	b.WriteString("📋 Hoje você ainda precisa tomar:")
	for _, d := range doses {
		b.WriteString("\n🔔 " + d.Display())
	}

	return b.String()
}

func writeTaken(b *strings.Builder, taken []ledger.Taken) {
	for _, t := range taken {
		fmt.Fprintf(b, "\n- %s às %s", t.Medication, t.Time)
	}
}

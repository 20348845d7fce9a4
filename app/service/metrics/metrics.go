package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do"
)

type Service struct {
	Registry *prometheus.Registry

	RemindersSent  *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	Retries        prometheus.Counter
	Missed         prometheus.Counter
	Replies        *prometheus.CounterVec
	LedgerFailures *prometheus.CounterVec
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	s := &Service{
		Registry: prometheus.NewRegistry(),
		RemindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "reminders_sent_total",
			Help:      "Scheduled reminders handed to the messenger, by offset.",
		}, []string{"offset"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "send_failures_total",
			Help:      "Messages the messenger failed to deliver, by source.",
		}, []string{"source"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "retries_total",
			Help:      "Retry prompts sent by the sweeper.",
		}),
		Missed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "doses_missed_total",
			Help:      "Doses marked missed after exhausting retries.",
		}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "replies_total",
			Help:      "Inbound replies by classified intent.",
		}, []string{"intent"}),
		LedgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medremind",
			Name:      "ledger_failures_total",
			Help:      "Ledger writes that failed, by operation.",
		}, []string{"operation"}),
	}

	s.Registry.MustRegister(
		s.RemindersSent,
		s.SendFailures,
		s.Retries,
		s.Missed,
		s.Replies,
		s.LedgerFailures,
		collectors.NewGoCollector(),
	)

	return s
}

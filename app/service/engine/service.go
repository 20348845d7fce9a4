package engine

import (
	"context"
	"log/slog"
	"medremind/app/client/messenger"
	"medremind/app/client/telegram"
	"medremind/app/config"
	"medremind/app/service/interpreter"
	"medremind/app/service/metrics"
	"medremind/app/service/queue"
	"strings"
	"time"

	"github.com/samber/do"
)

const relistenDelay = 30 * time.Second

type Listener interface {
	Listen(ctx context.Context, handle func(telegram.Message))
}

type Replier interface {
	Reply(ctx context.Context, sender, text string) string
}

// Service answers chat messages: the listener feeds the queue and a single
// loop consumes it, so replies are handled one at a time in arrival order.
type Service struct {
	chatID   string
	listener Listener
	queueSvc *queue.Service
	replier  Replier
	sender   messenger.Sender
	metrics  *metrics.Service
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Patient.To,
		do.MustInvoke[*telegram.Client](di),
		do.MustInvoke[*queue.Service](di),
		do.MustInvoke[*interpreter.Service](di),
		do.MustInvoke[messenger.Sender](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	chatID string,
	listener Listener,
	queueSvc *queue.Service,
	replier Replier,
	sender messenger.Sender,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		chatID:   strings.TrimSpace(chatID),
		listener: listener,
		queueSvc: queueSvc,
		replier:  replier,
		sender:   sender,
		metrics:  metricsSvc,
	}
}

func (s *Service) Run(ctx context.Context) {
	go s.listen(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			s.process(ctx, msg)
		}
	}
}

func (s *Service) listen(ctx context.Context) {
	for {
		s.listener.Listen(ctx, s.accept)

		select {
		case <-ctx.Done():
			return
		case <-time.After(relistenDelay):
			slog.Warn("Telegram updates stopped, listening again")
		}
	}
}

// accept enqueues messages from the patient's chat and drops the rest.
func (s *Service) accept(msg telegram.Message) {
	if msg.ChatID != s.chatID {
		slog.Warn("Ignoring message from unknown chat", "chat_id", msg.ChatID)
		return
	}

	s.queueSvc.Add(msg.ChatID, msg.Text)
}

func (s *Service) process(ctx context.Context, msg queue.Message) {
	start := time.Now()

	reply := s.replier.Reply(ctx, msg.Sender, msg.Text)

	if err := s.sender.Send(ctx, msg.Sender, reply); err != nil {
		s.metrics.SendFailures.WithLabelValues("reply").Inc()
		slog.Error("Failed to send reply",
			"sender", msg.Sender,
			"error", err)
		return
	}

	slog.Info("Processed message",
		"sender", msg.Sender,
		"text", msg.Text,
		"duration", time.Since(start))
}

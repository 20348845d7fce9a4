package webhook

import (
	"context"
	"errors"
	"log/slog"
	"medremind/app/client/twilio"
	"medremind/app/config"
	"medremind/app/service/interpreter"
	"medremind/app/service/metrics"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

const shutdownTimeout = 10 * time.Second

var _ do.Shutdownable = (*Service)(nil)

type Replier interface {
	Reply(ctx context.Context, sender, text string) string
}

type SignatureValidator interface {
	ValidSignature(url string, params map[string]string, signature string) bool
}

// Service serves the inbound message webhook, the health probe and metrics.
type Service struct {
	app  *fiber.App
	addr string

	replier    Replier
	validator  SignatureValidator
	webhookURL string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var validator SignatureValidator
	if cfg.Messenger.Driver == "twilio" && cfg.Messenger.Twilio.ValidateSignature {
		validator = do.MustInvoke[*twilio.Client](di)
	}

	return NewService(
		cfg.HTTP.Addr,
		do.MustInvoke[*interpreter.Service](di),
		do.MustInvoke[*metrics.Service](di),
		validator,
		cfg.Messenger.Twilio.WebhookURL,
	), nil
}

// NewService builds the server. A nil validator accepts unsigned calls.
func NewService(
	addr string,
	replier Replier,
	metricsSvc *metrics.Service,
	validator SignatureValidator,
	webhookURL string,
) *Service {
	s := &Service{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           30 * time.Second,
			WriteTimeout:          30 * time.Second,
		}),
		addr:       addr,
		replier:    replier,
		validator:  validator,
		webhookURL: webhookURL,
	}

	s.app.Use(recover.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metricsSvc.Registry, promhttp.HandlerOpts{})))

	s.app.Get("/webhook", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	s.app.Post("/webhook", s.handleMessage)

	return s
}

func (s *Service) App() *fiber.App {
	return s.app
}

func (s *Service) handleMessage(c *fiber.Ctx) error {
	if s.validator != nil && !s.validator.ValidSignature(s.webhookURL, formParams(c), c.Get("X-Twilio-Signature")) {
		slog.Warn("Rejected webhook call with invalid signature", "ip", c.IP())
		return c.SendStatus(fiber.StatusForbidden)
	}

	from := strings.TrimSpace(c.FormValue("From"))
	body := strings.TrimSpace(c.FormValue("Body"))

	var reply string
	if body != "" {
		reply = s.replier.Reply(c.UserContext(), from, body)
		slog.Info("Answered inbound message", "from", from, "text", body)
	}

	doc, err := twilio.Reply(reply)
	if err != nil {
		slog.Error("Failed to render TwiML", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")

	return c.SendString(doc)
}

func formParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)

	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	return params
}

// Run listens until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("HTTP server listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.Shutdown(); err != nil {
			return err
		}

		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}
}

func (s *Service) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

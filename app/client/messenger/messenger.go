package messenger

import (
	"context"
	"log/slog"
	"medremind/app/client/telegram"
	"medremind/app/client/twilio"
	"medremind/app/config"
	"medremind/app/util/mylog"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Sender delivers a text message to a recipient. Bodies may use *bold*.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

func New(di *do.Injector) (Sender, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Messenger.Driver {
	case "twilio":
		return do.MustInvoke[*twilio.Client](di), nil
	case "telegram":
		return do.MustInvoke[*telegram.Client](di), nil
	case "log":
		return LogSender{}, nil
	default:
		return nil, oops.Errorf("unknown messenger driver %q", cfg.Messenger.Driver)
	}
}

// LogSender only logs messages; used for dry runs.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, body string) error {
	slog.Info("Message (notifications disabled)", "to", to, "text", body, mylog.Notify())
	return nil
}

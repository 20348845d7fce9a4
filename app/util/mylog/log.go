package mylog

import (
	"context"
	"log/slog"
	"medremind/app/config"
	"os"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// NotifyKey marks records that must also reach the operator telegram chat.
const NotifyKey = "telegram"

// Notify is attached to records worth forwarding to the operator.
func Notify() slog.Attr {
	return slog.Bool(NotifyKey, true)
}

func Preinit() {
	slog.SetDefault(slog.New(consoleHandler()))
}

func Init(cfg *config.Config) error {
	router := slogmulti.Router().Add(consoleHandler())

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			shouldNotify,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func consoleHandler() slog.Handler {
	return console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})
}

func shouldNotify(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}

	notify := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == NotifyKey {
			notify = attr.Value.Kind() == slog.KindBool && attr.Value.Bool()
			return false
		}

		return true
	})

	return notify
}

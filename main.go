package main

import (
	"context"
	"log/slog"
	"medremind/app/client/messenger"
	"medremind/app/client/telegram"
	"medremind/app/client/twilio"
	"medremind/app/config"
	"medremind/app/service/dispatch"
	"medremind/app/service/engine"
	"medremind/app/service/interpreter"
	"medremind/app/service/ledger"
	"medremind/app/service/mcptools"
	"medremind/app/service/metrics"
	"medremind/app/service/queue"
	"medremind/app/service/report"
	"medremind/app/service/schedule"
	"medremind/app/service/scheduler"
	"medremind/app/service/sweeper"
	"medremind/app/service/webhook"
	"medremind/app/util/clock"
	"medremind/app/util/mylog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "medremind",
	Short: "Medication reminders over WhatsApp or Telegram",
	Long: `medremind sends reminders before each scheduled dose, re-prompts
unconfirmed doses and understands short replies such as "tomei o Lipidil"
or "quais faltam".

Run without a sub-command to start the service.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(briefingCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	mylog.Preinit()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and registers every service in a new injector.
func setup(ctx context.Context) (*do.Injector, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	if err = mylog.Init(cfg); err != nil {
		return nil, err
	}

	di := do.New()
	do.ProvideValue(di, ctx)
	do.ProvideValue(di, cfg)

	do.Provide(di, clock.New)
	do.Provide(di, metrics.New)
	do.Provide(di, schedule.New)
	do.Provide(di, ledger.NewStore)
	do.Provide(di, ledger.New)
	do.Provide(di, twilio.NewClient)
	do.Provide(di, telegram.NewClient)
	do.Provide(di, messenger.New)
	do.Provide(di, dispatch.New)
	do.Provide(di, sweeper.New)
	do.Provide(di, interpreter.New)
	do.Provide(di, report.New)
	do.Provide(di, scheduler.New)
	do.Provide(di, queue.New)
	do.Provide(di, engine.New)
	do.Provide(di, webhook.New)
	do.Provide(di, mcptools.New)

	return di, nil
}

// withInjector runs fn with a ready injector and shuts it down afterwards.
func withInjector(cmd *cobra.Command, fn func(ctx context.Context, di *do.Injector) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	di, err := setup(ctx)
	if err != nil {
		slog.Error("Startup failed", "error", err)
		return err
	}
	defer func() {
		if err := di.Shutdown(); err != nil {
			slog.Warn("Shutdown finished with errors", "error", err)
		}
	}()

	return fn(ctx, di)
}

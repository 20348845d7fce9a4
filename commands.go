package main

import (
	"context"
	"fmt"
	"log/slog"
	"medremind/app/config"
	"medremind/app/service/engine"
	"medremind/app/service/interpreter"
	"medremind/app/service/mcptools"
	"medremind/app/service/report"
	"medremind/app/service/scheduler"
	"medremind/app/service/webhook"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var dryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the webhook server and the chat listener",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Send the morning briefing with today's pending doses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return sendReport(cmd, report.Briefing)
	},
}

var reportCmd = &cobra.Command{
	Use:       "report daily|weekly|briefing",
	Short:     "Send a report to the patient",
	Long:      "Render a report and send it through the configured messenger. With --dry-run it is printed instead.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(report.Daily), string(report.Weekly), string(report.Briefing)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendReport(cmd, report.Kind(args[0]))
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print today's doses that were not confirmed yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withInjector(cmd, func(ctx context.Context, di *do.Injector) error {
			doses := do.MustInvoke[*interpreter.Service](di).PendingToday(ctx)
			if len(doses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nenhum remédio pendente hoje.")
				return nil
			}

			for _, d := range doses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", d.Display(), d.Medication.Dosage)
			}

			return nil
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve dose tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withInjector(cmd, func(_ context.Context, di *do.Injector) error {
			return do.MustInvoke[*mcptools.Service](di).ServeStdio()
		})
	},
}

func init() {
	briefingCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print instead of sending")
	reportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print instead of sending")
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withInjector(cmd, func(ctx context.Context, di *do.Injector) error {
		cfg := do.MustInvoke[*config.Config](di)

		group, ctx := errgroup.WithContext(ctx)

		group.Go(func() error {
			return do.MustInvoke[*scheduler.Service](di).Run(ctx)
		})
		group.Go(func() error {
			return do.MustInvoke[*webhook.Service](di).Run(ctx)
		})

		if cfg.Messenger.Driver == "telegram" {
			group.Go(func() error {
				do.MustInvoke[*engine.Service](di).Run(ctx)
				return nil
			})
		}

		slog.Info("Service started",
			"messenger", cfg.Messenger.Driver,
			"storage", cfg.Storage.Driver,
			"timezone", cfg.Timezone)

		err := group.Wait()

		slog.Info("Waiting for services to finish...")

		return err
	})
}

func sendReport(cmd *cobra.Command, kind report.Kind) error {
	return withInjector(cmd, func(ctx context.Context, di *do.Injector) error {
		reports := do.MustInvoke[*report.Service](di)

		if !dryRun {
			return reports.Send(ctx, kind)
		}

		text, err := reports.Render(ctx, kind)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), text)

		return nil
	})
}

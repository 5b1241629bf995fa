package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ksred/klear-profitshare/internal/app"
	"github.com/ksred/klear-profitshare/internal/config"
	"github.com/ksred/klear-profitshare/internal/jobs"
	"github.com/ksred/klear-profitshare/pkg/logging"
)

var Version = "dev"

type jobFunc func(r *jobs.Runner) func(ctx context.Context, p jobs.Params) (*jobs.Report, error)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "splitctl",
		Short:         "Run profit-share reconciliation batches",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config file")
	root.PersistentFlags().Bool("dry-run", false, "select and classify candidates without calling the provider")
	root.PersistentFlags().Int("max-retry", jobs.DefaultMaxRetry, "attempt ceiling per receiver")
	root.PersistentFlags().Int("retry-interval-minutes", jobs.DefaultRetryIntervalMinutes, "cooldown between attempts")
	root.PersistentFlags().String("merchant", "", "only process this mchid")
	root.PersistentFlags().Int("lookback-days", jobs.DefaultLookbackDays, "only consider records created within this window")

	root.AddCommand(
		jobCmd("retry", "Re-query failed or pending receivers", func(r *jobs.Runner) func(context.Context, jobs.Params) (*jobs.Report, error) {
			return r.RunRetry
		}),
		jobCmd("sync", "Refresh orders still processing at the provider", func(r *jobs.Runner) func(context.Context, jobs.Params) (*jobs.Report, error) {
			return r.RunSync
		}),
		jobCmd("unfreeze", "Release unsplit funds of finished orders", func(r *jobs.Runner) func(context.Context, jobs.Params) (*jobs.Report, error) {
			return r.RunUnfreeze
		}),
	)
	return root
}

func jobCmd(use, short string, pick jobFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			params, err := resolveParams(cmd, a.JobParams())
			if err != nil {
				return err
			}

			report, err := pick(a.Jobs)(ctx, params)
			if report != nil {
				if werr := writeReport(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

// resolveParams starts from configured defaults and applies only flags set on the command line.
func resolveParams(cmd *cobra.Command, p jobs.Params) (jobs.Params, error) {
	flags := cmd.Flags()
	var err error
	if flags.Changed("dry-run") {
		if p.DryRun, err = flags.GetBool("dry-run"); err != nil {
			return p, err
		}
	}
	if flags.Changed("max-retry") {
		if p.MaxRetry, err = flags.GetInt("max-retry"); err != nil {
			return p, err
		}
	}
	if flags.Changed("retry-interval-minutes") {
		if p.RetryIntervalMinutes, err = flags.GetInt("retry-interval-minutes"); err != nil {
			return p, err
		}
	}
	if flags.Changed("merchant") {
		if p.MerchantFilter, err = flags.GetString("merchant"); err != nil {
			return p, err
		}
	}
	if flags.Changed("lookback-days") {
		if p.LookbackDays, err = flags.GetInt("lookback-days"); err != nil {
			return p, err
		}
	}
	if p.MaxRetry < 0 || p.RetryIntervalMinutes < 0 || p.LookbackDays < 0 {
		return p, fmt.Errorf("job parameters must not be negative")
	}
	return p, nil
}

func writeReport(w io.Writer, report *jobs.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ArxivDigest/internal/app"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "arxivdigest",
		Short:         "Score new arXiv papers against user digests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults to $ARXIV_DIGEST_CONFIG)")

	root.AddCommand(newRunCmd(&cfgFile), newScheduleCmd(&cfgFile))
	return root
}

func newRunCmd(cfgFile *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a single day and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}

			day, err := parseDay(date, cfg.Scheduler.Location())
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logging.New(cfg.Logging.Level))
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.RunOnce(cmd.Context(), day)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date as YYYY-MM-DD (default today)")
	return cmd
}

func newScheduleCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the digest job on the configured cron until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Logging.Level)
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Schedule(cmd.Context()); err != nil {
				logger.Error("scheduler stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

// parseDay reads a YYYY-MM-DD date in loc. An empty value is the zero time,
// which the application treats as today.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(domain.ResultDateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", value, err)
	}
	return day, nil
}

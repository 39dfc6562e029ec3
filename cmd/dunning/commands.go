package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	billingrundomain "github.com/smallbiznis/dunning/internal/billingrun/domain"
	"github.com/smallbiznis/dunning/internal/clock"
	"github.com/smallbiznis/dunning/internal/migration"
	"github.com/smallbiznis/dunning/internal/scheduler"
	"github.com/smallbiznis/dunning/internal/server"
	"github.com/smallbiznis/dunning/internal/watchdog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

func newRunCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the billing cycle once and exit non-zero on failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched *scheduler.Scheduler
				clk   clock.Clock
			)
			stop, err := start(cmd.Context(), fx.Options(infrastructure(), billing(), fx.Populate(&sched, &clk)))
			if err != nil {
				return err
			}
			defer stop()

			today, err := parseRunDate(date, clk.Now())
			if err != nil {
				return err
			}

			result, err := sched.Trigger(cmd.Context(), today)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, summarize(result)); err != nil {
				return err
			}
			if !result.OK() {
				return fmt.Errorf("billing run %s failed: %s", result.RunID, result.ErrorMessage())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "billing date as YYYY-MM-DD (default today, UTC)")
	return cmd
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler loop and the operator HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			infrastructure(),
			migration.Module,
			billing(),
			scheduler.Loop,
			server.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Check the last billing run once and alert when it is unhealthy",
	RunE: func(cmd *cobra.Command, args []string) error {
		var dog *watchdog.Watchdog
		stop, err := start(cmd.Context(), fx.Options(infrastructure(), billing(), fx.Populate(&dog)))
		if err != nil {
			return err
		}
		defer stop()

		report, err := dog.Check(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if !report.Healthy() {
			return fmt.Errorf("billing run unhealthy: %s", report.Condition)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		stop, err := start(cmd.Context(), fx.Options(infrastructure(), migration.Module))
		if err != nil {
			return err
		}
		stop()
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

// start builds and starts a short-lived application. The returned func stops it.
func start(ctx context.Context, opts fx.Option) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(opts, fx.NopLogger)
	if err := app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, err
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}, nil
}

func parseRunDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return clock.StartOfDay(now), nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", value)
	}
	return parsed.UTC(), nil
}

type runSummary struct {
	RunID   string                     `json:"run_id"`
	Date    string                     `json:"date"`
	Status  billingrundomain.RunStatus `json:"status"`
	Error   string                     `json:"error,omitempty"`
	Metrics map[string]int64           `json:"metrics"`
}

func summarize(result billingrundomain.RunResult) runSummary {
	return runSummary{
		RunID:   result.RunID,
		Date:    result.Date.Format(time.DateOnly),
		Status:  result.Status,
		Error:   result.ErrorMessage(),
		Metrics: result.Metrics.Map(),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaporm/internal/cli/output"
	"github.com/leapstack-labs/leaporm/internal/config"
	"github.com/leapstack-labs/leaporm/pkg/orm"
)

// NewPingCommand creates the ping command.
func NewPingCommand() *cobra.Command {
	var (
		watch   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping [name...]",
		Short: "Check connectivity of data sources",
		Long: `Open the pool of each named data source (all of them by default), lease
a connection, health-check it and report the latency and pool state.
Data sources are pinged concurrently.

With --watch the check runs again each time leaporm.yaml changes, until
interrupted.`,
		Example: `  # Ping every configured data source
  leaporm ping

  # Ping one data source and keep watching the config file
  leaporm ping main --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			if !watch {
				return runPing(cmd.Context(), c, args, timeout)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return watchPing(ctx, c, args, timeout)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Ping again whenever the config file changes")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Time allowed per data source to connect and ping")

	return cmd
}

func runPing(ctx context.Context, c *CommandContext, names []string, timeout time.Duration) error {
	if len(c.Cfg.DataSources) == 0 {
		return errors.New("no data sources configured; run 'leaporm init' to create leaporm.yaml")
	}
	if len(names) == 0 {
		names = c.Cfg.Names()
	}
	for _, name := range names {
		if _, ok := c.Cfg.DataSources[name]; !ok {
			return fmt.Errorf("unknown datasource %q (available: %v)", name, c.Cfg.Names())
		}
	}

	results := pingAll(ctx, c.Cfg, names, timeout, c.Logger)
	failed := renderPing(c.Renderer, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d data sources unreachable", failed, len(results))
	}
	return nil
}

func watchPing(ctx context.Context, c *CommandContext, names []string, timeout time.Duration) error {
	if c.Cfg.File == "" {
		return errors.New("--watch needs a config file")
	}
	if err := runPing(ctx, c, names, timeout); err != nil {
		c.Renderer.Error(err.Error())
	}
	c.Logger.Info("watching config file", slog.String("path", c.Cfg.File))

	return config.Watch(ctx, c.Cfg.File, func(cfg *config.Config, err error) {
		if err != nil {
			c.Renderer.Error(err.Error())
			return
		}
		c.Renderer.Println("")
		c.Renderer.Printf("%s changed at %s\n", c.Cfg.File, time.Now().Format(time.TimeOnly))
		next := *c
		next.Cfg = cfg
		if err := runPing(ctx, &next, names, timeout); err != nil {
			c.Renderer.Error(err.Error())
		}
	})
}

// pingAll pings every named data source concurrently. Failures are recorded
// in the results rather than cancelling the other pings.
func pingAll(ctx context.Context, cfg *config.Config, names []string, timeout time.Duration, logger *slog.Logger) []output.PingResult {
	results := make([]output.PingResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = pingOne(ctx, cfg, name, timeout, logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func pingOne(ctx context.Context, cfg *config.Config, name string, timeout time.Duration, logger *slog.Logger) output.PingResult {
	res := output.PingResult{Name: name}
	ds, err := cfg.DataSource(name)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Dialect = ds.Dialect

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := orm.Open(ctx, ds, orm.WithLogger(logger))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() {
		if err := db.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close failed", slog.String("datasource", name), slog.Any("error", err))
		}
	}()

	latency, err := db.Ping(ctx)
	stats := db.Stats()
	res.LatencyMS = float64(latency.Microseconds()) / 1000
	res.Open, res.Idle, res.Leased, res.Max = stats.Open, stats.Idle, stats.Leased, stats.Max
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

// renderPing writes results and returns how many failed.
func renderPing(r *output.Renderer, results []output.PingResult) int {
	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(output.PingOutput{Results: results, Failed: failed})
		return failed
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status, latency := "ok", strconv.FormatFloat(res.LatencyMS, 'f', 2, 64)+" ms"
		if !res.OK {
			status, latency = "FAILED", "-"
		}
		rows = append(rows, []string{
			res.Name,
			res.Dialect,
			status,
			latency,
			fmt.Sprintf("%d/%d open, %d idle", res.Open, res.Max, res.Idle),
		})
	}
	r.Table([]string{"Name", "Dialect", "Status", "Latency", "Pool"}, rows)

	for _, res := range results {
		if res.Error != "" {
			r.StatusLine(res.Name, "failure", res.Error)
		}
	}
	return failed
}

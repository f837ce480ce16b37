// Command redis-rdb-server serves a Redis RDB snapshot over RESP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	redisrdb "github.com/raniellyferreira/redis-rdb-server"
	"github.com/raniellyferreira/redis-rdb-server/internal/confloader"
	"github.com/raniellyferreira/redis-rdb-server/internal/metrics"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "redis-rdb-server",
		Usage:   "Serve the keys of a Redis RDB snapshot over the Redis protocol",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", redisrdb.Version, redisrdb.GitCommit, redisrdb.BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with RDBSERVER_ variables",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory holding the snapshot file",
			},
			&cli.StringFlag{
				Name:  "dbfilename",
				Usage: "Snapshot file name inside --dir",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind (default 127.0.0.1)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default 6379)",
			},
			&cli.StringFlag{
				Name:  "isolation",
				Usage: "Data sharing between connections: connection or shared",
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "Close connections idle for longer than this, 0 disables",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error or off",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Expose Prometheus metrics on this address, e.g. :9121",
			},
		},
		Action: run,
	}
}

// flagOverrides returns the flags the user set, keyed like Settings
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"dir":          "dir",
		"dbfilename":   "dbfilename",
		"host":         "host",
		"isolation":    "isolation",
		"log-level":    "log_level",
		"metrics-addr": "metrics_addr",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("port") {
		overrides["port"] = c.Int("port")
	}
	if c.IsSet("read-timeout") {
		overrides["read_timeout"] = c.Duration("read-timeout")
	}
	return overrides
}

func run(c *cli.Context) error {
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithEnvFile(c.String("env-file")),
	)
	settings, err := loader.Load(flagOverrides(c))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	hl := hclog.New(&hclog.LoggerOptions{
		Name:  "redis-rdb-server",
		Level: hclog.LevelFromString(settings.LogLevel),
	})
	logger := redisrdb.NewHCLogger(hl)

	opts, err := settings.ServerOptions()
	if err != nil {
		return err
	}
	opts = append(opts, redisrdb.WithLogger(logger))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsErr := make(chan error, 1)
	if settings.MetricsAddr != "" {
		collector := metrics.New()
		opts = append(opts, redisrdb.WithMetrics(collector))
		go func() {
			hl.Info("Metrics endpoint listening", "addr", settings.MetricsAddr)
			metricsErr <- collector.ListenAndServe(ctx, settings.MetricsAddr)
		}()
	}

	srv, err := redisrdb.New(opts...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	select {
	case <-ctx.Done():
		hl.Info("Shutting down")
	case err := <-metricsErr:
		if err != nil {
			hl.Error("Metrics endpoint failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "chat group moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "gateway-stream-host",
			Usage:   "websocket host of the action gateway event stream",
			Value:   "wss://gateway.example.com",
			EnvVars: []string{"WARDEN_GATEWAY_STREAM_HOST"},
		},
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "HTTP API host of the action gateway (enforcement actions)",
			Value:   "https://gateway.example.com",
			EnvVars: []string{"WARDEN_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "gateway-admin-token",
			Usage:   "admin auth token for the action gateway",
			EnvVars: []string{"WARDEN_GATEWAY_ADMIN_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "max-metadb-connections",
			EnvVars: []string{"MAX_METADB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgresql://); used when redis-url is not set",
			Value:   "sqlite://data/warden/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection string for config, state, and cursor storage",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "scorer-host",
			Usage:   "HTTP host of the external content scorer; content detection is disabled when empty",
			EnvVars: []string{"WARDEN_SCORER_HOST"},
		},
		&cli.StringFlag{
			Name:    "scorer-password",
			Usage:   "admin auth password for the content scorer",
			EnvVars: []string{"WARDEN_SCORER_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing moderation sets (extensions, domains, keywords)",
			EnvVars: []string{"WARDEN_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "api-listen",
			Usage:   "IP or address, and port, to listen on for admin APIs",
			Value:   ":3999",
			EnvVars: []string{"WARDEN_API_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token required on admin API requests; admin APIs are disabled when empty",
			EnvVars: []string{"WARDEN_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.DurationFlag{
			Name:    "detector-timeout",
			Usage:   "per-detector evaluation deadline",
			Value:   300 * time.Millisecond,
			EnvVars: []string{"WARDEN_DETECTOR_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "escalation-cooldown",
			Usage:   "time without violations after which escalation state resets",
			Value:   24 * time.Hour,
			EnvVars: []string{"WARDEN_ESCALATION_COOLDOWN"},
		},
		&cli.DurationFlag{
			Name:    "raid-window",
			Usage:   "group-wide join window for raid detection",
			Value:   5 * time.Minute,
			EnvVars: []string{"WARDEN_RAID_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of parallel event workers",
			Value:   50,
			EnvVars: []string{"WARDEN_WORKERS"},
		},
		&cli.IntFlag{
			Name:    "gateway-rate-limit",
			Usage:   "max enforcement actions per second to the gateway",
			Value:   20,
			EnvVars: []string{"WARDEN_GATEWAY_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(
			Config{
				GatewayStreamHost: cctx.String("gateway-stream-host"),
				GatewayHost:       cctx.String("gateway-host"),
				GatewayAdminToken: cctx.String("gateway-admin-token"),
				GatewayRateLimit:  cctx.Int("gateway-rate-limit"),
				ScorerHost:        cctx.String("scorer-host"),
				ScorerPassword:    cctx.String("scorer-password"),
				RedisURL:          cctx.String("redis-url"),
				DatabaseURL:       cctx.String("database-url"),
				MaxDBConnections:  cctx.Int("max-metadb-connections"),
				SetsFileJSON:      cctx.String("sets-json-path"),
				DetectorTimeout:   cctx.Duration("detector-timeout"),
				Cooldown:          cctx.Duration("escalation-cooldown"),
				RaidWindow:        cctx.Duration("raid-window"),
				Workers:           cctx.Int("workers"),
				Logger:            logger,
			},
		)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		go func() {
			if err := srv.RunAPI(cctx.String("api-listen"), cctx.String("admin-token")); err != nil {
				slog.Error("failed to start admin API endpoint", "error", err)
				panic(fmt.Errorf("failed to start admin API endpoint: %w", err))
			}
		}()

		go func() {
			if err := srv.RunPersistCursor(ctx); err != nil {
				slog.Error("cursor persistence loop failed", "error", err)
			}
		}()

		if err := srv.RunConsumer(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

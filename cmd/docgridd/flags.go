package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/docgrid/docgrid/internal/config"
)

var version = "dev"

func cmd() *cli.Command {
	return &cli.Command{
		Name:    "docgridd",
		Usage:   "document extraction grid service",
		Version: version,
		Flags:   flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, ok := ctx.Value(loggerKey{}).(*slog.Logger)
			if !ok {
				return errors.New("failed to get logger from context")
			}

			cfg := config.Load(cmd)

			return run(ctx, log, cfg)
		},
	}
}

func flags() []cli.Flag {
	var configFile string

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Load configuration from `FILE`",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "Database driver (postgres or sqlite)",
			Value:   "postgres",
			Sources: cli.NewValueSourceChain(yaml.YAML("database.driver", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "db-dsn",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(yaml.YAML("database.dsn", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.IntFlag{
			Name:    "db-max-conns",
			Value:   20,
			Sources: cli.NewValueSourceChain(yaml.YAML("database.max_conns", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.IntFlag{
			Name:    "db-min-conns",
			Value:   5,
			Sources: cli.NewValueSourceChain(yaml.YAML("database.min_conns", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "db-dial-timeout",
			Value:   3 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("database.dial_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.BoolFlag{
			Name:    "db-migrate",
			Usage:   "Apply embedded migrations on startup",
			Value:   true,
			Sources: cli.NewValueSourceChain(yaml.YAML("database.migrate", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "http-host",
			Value:   "0.0.0.0",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.host", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "http-port",
			Value:   "8080",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.port", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "http-idle-timeout",
			Value:   time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.idle_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "http-read-timeout",
			Value:   15 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.read_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			// Synchronous extraction holds the response open for the whole
			// provider round trip.
			Name:    "http-write-timeout",
			Value:   3 * time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.write_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "provider",
			Usage:   "Extraction provider: chatpdf, gemini or openrouter",
			Value:   "openrouter",
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.name", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "provider-api-key",
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.api_key", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "provider-model",
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.model", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "provider-fallback-model",
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.fallback_model", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "provider-timeout",
			Value:   90 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.IntFlag{
			Name:    "provider-max-retries",
			Value:   1,
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.max_retries", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "provider-base-delay",
			Value:   900 * time.Millisecond,
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.base_delay", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.IntFlag{
			Name:    "extract-workers",
			Value:   4,
			Sources: cli.NewValueSourceChain(yaml.YAML("provider.workers", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "GCS bucket holding uploaded documents",
			Sources: cli.NewValueSourceChain(yaml.YAML("storage.bucket", altsrc.NewStringPtrSourcer(&configFile))),
		},
	}
}

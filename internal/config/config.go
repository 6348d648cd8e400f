package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

type Config struct {
	Database
	HTTP
	Provider
	Storage
}

type Database struct {
	Driver      string
	DSN         string
	MaxConns    int32
	MinConns    int32
	DialTimeout time.Duration
	AutoMigrate bool
}

type HTTP struct {
	Host         string
	Port         string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Provider struct {
	Name          string
	APIKey        string
	Model         string
	FallbackModel string
	Timeout       time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
	Workers       int
}

type Storage struct {
	Bucket string
}

func Load(cmd *cli.Command) *Config {
	return &Config{
		Database: Database{
			Driver:      cmd.String("db-driver"),
			DSN:         cmd.String("db-dsn"),
			MaxConns:    int32(cmd.Int("db-max-conns")),
			MinConns:    int32(cmd.Int("db-min-conns")),
			DialTimeout: cmd.Duration("db-dial-timeout"),
			AutoMigrate: cmd.Bool("db-migrate"),
		},
		HTTP: HTTP{
			Host:         cmd.String("http-host"),
			Port:         cmd.String("http-port"),
			IdleTimeout:  cmd.Duration("http-idle-timeout"),
			ReadTimeout:  cmd.Duration("http-read-timeout"),
			WriteTimeout: cmd.Duration("http-write-timeout"),
		},
		Provider: Provider{
			Name:          cmd.String("provider"),
			APIKey:        cmd.String("provider-api-key"),
			Model:         cmd.String("provider-model"),
			FallbackModel: cmd.String("provider-fallback-model"),
			Timeout:       cmd.Duration("provider-timeout"),
			MaxRetries:    int(cmd.Int("provider-max-retries")),
			BaseDelay:     cmd.Duration("provider-base-delay"),
			Workers:       int(cmd.Int("extract-workers")),
		},
		Storage: Storage{
			Bucket: cmd.String("storage-bucket"),
		},
	}
}

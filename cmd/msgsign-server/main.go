package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/factory"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/server"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/submissions"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadEnvironment(""); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	app := &cli.App{
		Name:  "msgsign-server",
		Usage: "Signed submission verifier",
		Description: `An HTTP server that verifies EIP-191 signed submissions.

Each submission is checked for:
- a signature that recovers to the claimed signer
- a signer on the trust list (when the list is not empty)
- a well formed signed message
- a fresh embedded timestamp

Accepted submissions are appended to a ledger stored in memory, badger or redis.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvPort},
			},
			&cli.StringFlag{
				Name:    "trusted-addresses",
				Usage:   "Comma separated list of trusted signer addresses (empty accepts every signer)",
				EnvVars: []string{config.EnvTrustedAddresses},
			},
			&cli.StringFlag{
				Name:    "trusted-addresses-file",
				Usage:   "YAML file with a trusted_addresses list",
				EnvVars: []string{config.EnvTrustedFile},
			},
			&cli.DurationFlag{
				Name:    "freshness-window",
				Value:   config.DefaultFreshnessWindow,
				Usage:   "Maximum age of a signed message timestamp",
				EnvVars: []string{config.EnvFreshnessWindow},
			},
			&cli.DurationFlag{
				Name:    "max-future-skew",
				Value:   config.DefaultMaxFutureSkew,
				Usage:   "How far a signed timestamp may be ahead of the server clock",
				EnvVars: []string{config.EnvMaxFutureSkew},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceType_Memory),
				Usage:   "Ledger backend: memory, badger or redis",
				EnvVars: []string{config.EnvPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every redis key",
				EnvVars: []string{config.EnvRedisKeyPrefix},
			},
			&cli.IntFlag{
				Name:    "rate-limit-per-minute",
				Value:   config.DefaultRateLimitPerMinute,
				Usage:   "Requests per minute allowed per client IP",
				EnvVars: []string{config.EnvRateLimitPerMinute},
			},
			&cli.IntFlag{
				Name:  "rate-limit-burst",
				Value: config.DefaultRateLimitBurst,
				Usage: "Burst size of the per client IP limiter",
			},
			&cli.StringFlag{
				Name:    "admin-token",
				Usage:   "Bearer token for trust list and ledger mutations (mutations are disabled when empty)",
				EnvVars: []string{config.EnvAdminToken},
			},
			&cli.StringFlag{
				Name:    "trusted-proxies",
				Usage:   "Comma separated IPs or CIDRs whose forwarding headers identify the client",
				EnvVars: []string{config.EnvTrustedProxies},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   logger.FormatJSON,
				Usage:   "Log format: json, console or logfmt",
				EnvVars: []string{config.EnvLogFormat},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug:  c.Bool("verbose"),
		Format: c.String("log-format"),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	serverConfig, err := parseServerConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := serverConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ledger, err := factory.NewSubmissionLedger(&serverConfig.Verifier.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open submission ledger: %w", err)
	}

	svc, err := submissions.NewService(&serverConfig.Verifier, ledger, l)
	if err != nil {
		_ = ledger.Close()
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			l.Sugar().Errorw("Failed to close submission ledger", "error", err)
		}
	}()

	srv, err := server.NewServer(svc, serverConfig, l)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	l.Sugar().Infow("Starting msgsign server",
		"port", serverConfig.Port,
		"persistence", serverConfig.Verifier.Persistence.Type,
		"trusted_addresses", len(svc.TrustedAddresses()),
		"freshness_window", serverConfig.Verifier.FreshnessWindow.String(),
		"max_future_skew", serverConfig.Verifier.MaxFutureSkew.String(),
	)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Available endpoints",
		"submissions", "POST|GET|DELETE /submissions",
		"typed_data", "POST /typed-data/verify",
		"trusted", "GET|POST|DELETE /trusted",
		"admin_enabled", serverConfig.AdminToken != "",
		"ledger", "GET /ledger/root, GET /ledger/proof",
		"ops", "GET /health, GET /metrics")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	l.Sugar().Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func parseServerConfig(c *cli.Context) (*config.ServerConfig, error) {
	trusted := config.SplitAddressList(c.String("trusted-addresses"))
	if path := c.String("trusted-addresses-file"); path != "" {
		fromFile, err := config.LoadTrustedAddressesFile(path)
		if err != nil {
			return nil, err
		}
		trusted = append(trusted, fromFile...)
	}

	return &config.ServerConfig{
		Port:               c.Int("port"),
		RateLimitPerMinute: c.Int("rate-limit-per-minute"),
		RateLimitBurst:     c.Int("rate-limit-burst"),
		AdminToken:         c.String("admin-token"),
		TrustedProxies:     config.SplitAddressList(c.String("trusted-proxies")),
		Verifier: config.VerifierConfig{
			TrustedAddresses: trusted,
			FreshnessWindow:  c.Duration("freshness-window"),
			MaxFutureSkew:    c.Duration("max-future-skew"),
			Persistence: config.PersistenceConfig{
				Type:     config.PersistenceType(c.String("persistence-type")),
				DataPath: c.String("data-path"),
				Redis: config.RedisConfig{
					Address:   c.String("redis-address"),
					Password:  c.String("redis-password"),
					DB:        c.Int("redis-db"),
					KeyPrefix: c.String("redis-key-prefix"),
				},
			},
		},
		Debug:     c.Bool("verbose"),
		LogFormat: c.String("log-format"),
	}, nil
}

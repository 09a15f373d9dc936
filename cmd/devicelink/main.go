// Devicelink - device connectivity core
//
// Devicelink bridges the chat backend to its fleet of smart display
// devices: it maintains the broker session, tracks which devices are
// online, and delivers text, pixel art, animations and GIFs through an
// ordered command-channel/broker fallback chain.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/AIO-2030/alaya-ai-chat-nexus-sub002/migrations"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/broker"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/core"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/credential"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/dispatch"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/config"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/database"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/influxdb"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/logging"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/poller"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/registry"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/rpc"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting devicelink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Presence cache (optional)
	var repo device.Repository
	if cfg.Cache.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Cache.Path,
			WALMode:     cfg.Cache.WALMode,
			BusyTimeout: cfg.Cache.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening presence cache: %w", dbErr)
		}
		defer func() {
			log.Info("closing presence cache")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing presence cache", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("presence cache ready", "path", cfg.Cache.Path)

		repo = device.NewSQLiteRepository(db.DB)
	} else {
		log.Info("presence cache disabled")
	}

	// Connectivity telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Credential provider: the identity token comes from the environment,
	// never from the config file.
	identityToken := os.Getenv("ALAYA_IDENTITY_TOKEN")
	creds := credential.NewProvider(
		cfg.Cloud.CredentialEndpoint,
		func() (string, error) { return identityToken, nil },
		credential.WithRefreshMargin(cfg.GetRefreshMargin()),
		credential.WithLogger(log),
	)

	// Presence aggregator
	mode, err := device.ParseMergeMode(cfg.Dispatch.Mode)
	if err != nil {
		return fmt.Errorf("parsing dispatch mode: %w", err)
	}
	aggOpts := []device.AggregatorOption{device.WithLogger(log)}
	if repo != nil {
		aggOpts = append(aggOpts, device.WithRepository(repo))
	}
	aggregator := device.NewAggregator(mode, aggOpts...)

	// Broker transport. Each connect attempt fetches a fresh credential.
	transport := broker.New(cfg.MQTT, cfg.Cloud.ProductID, func() (string, string) {
		cred, credErr := creds.Token(ctx)
		if credErr != nil {
			log.Error("credential fetch for broker connect failed", "error", credErr)
			return "", ""
		}
		return cred.TmpSecretID, cred.Token
	}, aggregator, broker.WithLogger(log))

	// Delivery strategy chain: command channel first, broker second.
	var strategies []dispatch.Strategy
	var commandClient *rpc.Client
	if cfg.RPC.Enabled {
		commandClient = rpc.NewClient(cfg.RPC.Endpoint, cfg.Cloud.ProductID, cfg.GetRPCTimeout())
		strategies = append(strategies, dispatch.NewRPCStrategy(commandClient))
	} else {
		log.Info("command channel disabled, broker-only delivery")
	}
	strategies = append(strategies, dispatch.NewBrokerStrategy(transport))

	dispatchOpts := []dispatch.DispatcherOption{
		dispatch.WithLogger(log),
		dispatch.WithQueueSize(cfg.Dispatch.QueueSize),
	}
	if influxClient != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithTelemetry(influxClient))
	}
	dispatcher := dispatch.NewDispatcher(aggregator, strategies, dispatchOpts...)

	// Status polling loop (needs the command channel)
	var statusPoller core.StatusPoller
	if commandClient != nil {
		statusPoller = poller.New(commandClient, aggregator, cfg.GetPollInterval(),
			poller.WithLogger(log))
	}

	registryClient := registry.NewClient(
		cfg.Registry.Endpoint, cfg.Registry.APIKey, cfg.GetRegistryTimeout())

	deps := core.Deps{
		Registry:   registryClient,
		Transport:  transport,
		Aggregator: aggregator,
		Dispatcher: dispatcher,
		Poller:     statusPoller,
		Logger:     log,
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}

	service, err := core.New(deps)
	if err != nil {
		return fmt.Errorf("building service: %w", err)
	}

	if err := service.Initialize(ctx); err != nil {
		return fmt.Errorf("initialising service: %w", err)
	}
	defer func() {
		log.Info("disposing service")
		service.Dispose()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ALAYA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ALAYA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

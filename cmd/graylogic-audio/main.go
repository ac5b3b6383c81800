// Gray Logic Audio - PipeWire device service
//
// This is the main entry point for the Gray Logic Audio service. It exposes
// configured PipeWire nodes as devices, probes them on a schedule, and serves
// their state over REST, WebSocket, and MQTT.
//
// Usage:
//
//	graylogic-audio [-config path]
//	graylogic-audio -query NODE_ID
//	graylogic-audio -migrate-down [-config path]
//
// The query mode prints one node's properties as JSON and exits.
// -migrate-down rolls back the newest applied schema migration and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nerrad567/gray-logic-audio/internal/api"
	"github.com/nerrad567/gray-logic-audio/internal/auth"
	"github.com/nerrad567/gray-logic-audio/internal/device"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-audio/internal/monitor"
	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
	"github.com/nerrad567/gray-logic-audio/migrations"
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

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	queryNode   string
	migrateDown bool
}

// parseArgs parses the command line. The config path falls back to
// GRAYLOGIC_CONFIG, then to defaultConfigPath.
func parseArgs(args []string) (options, error) {
	var opts options
	fset := flag.NewFlagSet("graylogic-audio", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	fset.StringVar(&opts.queryNode, "query", "", "print the properties of NODE_ID and exit")
	fset.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the newest database migration and exit")
	if err := fset.Parse(args); err != nil {
		return options{}, fmt.Errorf("parsing arguments: %w", err)
	}
	if fset.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument %q", fset.Arg(0))
	}
	if opts.migrateDown && opts.queryNode != "" {
		return options{}, errors.New("-query and -migrate-down are mutually exclusive")
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - stdout: Destination for query output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.queryNode != "" {
		return runQuery(ctx, opts, stdout)
	}
	if opts.migrateDown {
		return runMigrateDown(ctx, opts, stdout)
	}

	log := logging.Default()
	log.Info("starting Gray Logic Audio",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	bridge := pipewire.NewClient(bridgeConfig(cfg.PipeWire), log.Component("pipewire"))

	registry, err := buildRegistry(cfg.Devices, bridge, log)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	snapshots := device.NewSQLiteSnapshotRepository(db.DB)

	var issuer *auth.Issuer
	if cfg.API.Enabled && len(cfg.Security.JWT.Clients) > 0 {
		issuer = auth.NewIssuer(auth.IssuerConfig{
			Clients:    cfg.Security.JWT.Clients,
			Secret:     cfg.Security.JWT.Secret,
			SiteID:     cfg.Site.ID,
			TTLMinutes: cfg.Security.JWT.AccessTokenTTL,
		}, auth.NewTokenRepository(db.DB))
		log.Info("API authentication enabled", "clients", len(cfg.Security.JWT.Clients))
	}

	// The hub is shared: the monitor broadcasts through it and the API
	// serves its clients.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon, err = startMonitor(ctx, cfg, registry, snapshots, mqttClient, influxClient, hub, issuer, log)
		if err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
		defer func() {
			log.Info("stopping monitor")
			mon.Stop()
		}()
	} else {
		log.Info("monitor disabled")
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Registry:    registry,
			History:     snapshots,
			ExternalHub: hub,
			Version:     version,
		}
		if mon != nil {
			deps.Monitor = mon
		}
		if issuer != nil {
			deps.Issuer = issuer
		}

		apiServer, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: API, monitor, InfluxDB, MQTT, database.

	log.Info("Gray Logic Audio stopped")
	return nil
}

// runQuery prints the properties of one node as indented JSON.
// A missing config file is not an error here; the built-in defaults are used.
func runQuery(ctx context.Context, opts options, stdout io.Writer) error {
	nodeID, err := strconv.ParseUint(opts.queryNode, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid node id %q: %w", opts.queryNode, err)
	}

	cfg, err := config.Load(opts.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := pipewire.NewClient(bridgeConfig(cfg.PipeWire), nil)
	props, err := client.NodeProperties(ctx, uint32(nodeID))
	if err != nil {
		return fmt.Errorf("querying node %d: %w", nodeID, err)
	}
	if props == nil {
		return fmt.Errorf("node %d not found", nodeID)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(props); err != nil {
		return fmt.Errorf("writing properties: %w", err)
	}
	return nil
}

// runMigrateDown rolls back the newest applied migration of the configured
// database and reports its version.
func runMigrateDown(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(stdout, "no migrations applied")
		return nil
	}

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	fmt.Fprintf(stdout, "rolled back migration %s\n", applied[len(applied)-1].Version)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bridgeConfig maps the pipewire config section onto a session config.
func bridgeConfig(cfg config.PipeWireConfig) pipewire.Config {
	return pipewire.Config{
		Remote:         cfg.Remote,
		ClientName:     cfg.ClientName,
		Properties:     cfg.Properties,
		ConnectTimeout: cfg.ConnectTimeout,
		SyncTimeout:    cfg.SyncTimeout,
	}
}

// buildRegistry creates one device per configured entry.
//
// Parameters:
//   - devices: Device entries from config
//   - source: Answers node property queries for every device
//   - log: Logger instance
//
// Returns:
//   - *device.Registry: Registry holding every device
//   - error: First invalid or duplicate entry
func buildRegistry(devices []config.DeviceConfig, source device.PropertySource, log *logging.Logger) (*device.Registry, error) {
	registry := device.NewRegistry()
	registry.SetLogger(log)

	for _, dc := range devices {
		var typ device.Type // empty means duplex
		if dc.Type != "" {
			parsed, err := device.ParseType(dc.Type)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", dc.ID, err)
			}
			typ = parsed
		}

		d, err := device.New(device.Options{
			ID:               dc.ID,
			TargetNode:       dc.NodeID,
			Type:             typ,
			ObjectSerial:     dc.ObjectSerial,
			StreamName:       dc.StreamName,
			StreamProperties: dc.StreamPropertyBytes(),
			Source:           source,
			Logger:           log.With("device_id", dc.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", dc.ID, err)
		}
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// startMonitor creates and starts the device monitor.
// Nil collaborators are left unset so the monitor skips them.
func startMonitor(
	ctx context.Context,
	cfg *config.Config,
	registry *device.Registry,
	snapshots device.SnapshotRepository,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	hub *api.Hub,
	issuer *auth.Issuer,
	log *logging.Logger,
) (*monitor.Monitor, error) {
	opts := monitor.Options{
		Registry:  registry,
		Interval:  cfg.Monitor.Interval,
		Retention: cfg.Monitor.HistoryRetention,
		Snapshots: snapshots,
		Version:   version,
		Logger:    log.Component("monitor"),
	}
	if mqttClient != nil {
		opts.Publisher = mqttClient
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}
	if hub != nil {
		opts.Broadcaster = hub
	}
	if issuer != nil {
		opts.Tokens = issuer
	}

	mon, err := monitor.New(opts)
	if err != nil {
		return nil, err
	}
	if err := mon.Start(ctx); err != nil {
		mon.Stop()
		return nil, err
	}
	log.Info("monitor started", "interval", cfg.Monitor.Interval)
	return mon, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The PipeWire bridge is not checked: the monitor reports an unreachable
	// server as device errors rather than refusing to start.

	return nil
}

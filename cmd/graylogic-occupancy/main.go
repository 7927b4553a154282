// Gray Logic Occupancy - location occupancy service
//
// This is the main entry point for the Gray Logic occupancy service. It
// turns raw sensor state from the protocol bridges into per-location
// occupancy across the building's location tree:
//   - Hierarchical propagation (room -> floor -> building)
//   - Holds, locks and timers that survive restarts
//   - Offline-first: state is persisted locally in SQLite
//
// Occupancy is published on graylogic/core/occupancy/{location}/state and,
// when the API is enabled, served over REST with a WebSocket live feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/api"
	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/location"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/snapshot"
	"github.com/nerrad567/gray-logic-occupancy/internal/tracker"
	"github.com/nerrad567/gray-logic-occupancy/migrations"
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

// shutdownTimeout bounds the final snapshot save.
const shutdownTimeout = 10 * time.Second

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
	log.Info("starting Gray Logic Occupancy",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
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

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := location.NewSQLiteRepository(db.DB)
	engine, classifier, err := buildEngine(ctx, cfg, repo, log)
	if err != nil {
		return err
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	snapStore := snapshot.NewStore(db.DB)
	if err := prepareSnapshot(ctx, snapStore, cfg.Occupancy, log); err != nil {
		return err
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	opts := tracker.Options{
		Engine:           engine,
		Classifier:       classifier,
		Publisher:        mqttClient,
		Store:            snapStore,
		Audit:            auditRepo,
		Logger:           log.Component("tracker"),
		QoS:              byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		SnapshotOnChange: cfg.Occupancy.SnapshotOnChange,
		MinWakeInterval:  cfg.GetMinWakeInterval(),
	}

	// InfluxDB is optional; history is simply not recorded without it.
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts.Recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// The hub is created before the tracker so transitions reach it from
	// the first publish.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go hub.Run(ctx)
		opts.Feed = hub
	}

	occ, err := tracker.New(opts)
	if err != nil {
		return fmt.Errorf("creating occupancy tracker: %w", err)
	}
	if err := occ.Start(ctx); err != nil {
		return fmt.Errorf("starting occupancy tracker: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := occ.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping occupancy tracker", "error", stopErr)
		}
	}()

	if err := occ.Subscribe(ctx, mqttClient); err != nil {
		return fmt.Errorf("subscribing occupancy tracker: %w", err)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log.Component("api"),
			Tracker:     occ,
			Locations:   repo,
			Audit:       auditRepo,
			ExternalHub: hub,
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Tracker (final snapshot)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Gray Logic Occupancy stopped")
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

// buildEngine seeds the topology (if configured) and builds the engine
// and classifier from what the database holds.
func buildEngine(ctx context.Context, cfg *config.Config, repo location.Repository, log *logging.Logger) (*occupancy.Engine, *classify.Classifier, error) {
	if cfg.Topology.SeedOnStart {
		f, err := location.LoadFile(cfg.Topology.File)
		if err != nil {
			return nil, nil, fmt.Errorf("loading topology: %w", err)
		}
		res, err := location.Seed(ctx, repo, f)
		if err != nil {
			return nil, nil, fmt.Errorf("seeding topology: %w", err)
		}
		log.Info("topology seeded",
			"path", cfg.Topology.File,
			"locations", res.Locations,
			"sensors", res.Sensors,
		)
	}

	locations, err := repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing locations: %w", err)
	}
	sensors, err := repo.ListSensors(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing sensors: %w", err)
	}

	engine, err := occupancy.NewEngine(location.BuildEngineConfigs(locations))
	if err != nil {
		return nil, nil, fmt.Errorf("building occupancy engine: %w", err)
	}
	engine.SetLogger(log.Component("occupancy"))

	bindings := enabledBindings(engine, location.BuildBindings(sensors))
	classifier, err := classify.New(bindings)
	if err != nil {
		return nil, nil, fmt.Errorf("building classifier: %w", err)
	}
	classifier.SetLogger(log.Component("classify"))

	log.Info("occupancy engine built",
		"locations", len(engine.Locations()),
		"sensors", len(bindings),
	)
	return engine, classifier, nil
}

// enabledBindings drops sensors bound to locations the engine does not
// track (disabled or removed).
// prepareSnapshot reports the age of the stored state, or drops it when
// the configuration asks for a clean start.
func prepareSnapshot(ctx context.Context, store *snapshot.Store, cfg config.OccupancyConfig, log *logging.Logger) error {
	if cfg.DiscardSnapshot {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("discarding occupancy snapshot: %w", err)
		}
		log.Info("occupancy snapshot discarded")
		return nil
	}
	savedAt, ok, err := store.SavedAt(ctx)
	if err != nil {
		return fmt.Errorf("inspecting occupancy snapshot: %w", err)
	}
	if !ok {
		log.Info("no occupancy snapshot stored")
		return nil
	}
	log.Info("restoring occupancy snapshot",
		"saved_at", savedAt.Format(time.RFC3339),
		"age", time.Since(savedAt).Round(time.Second).String(),
	)
	return nil
}

func enabledBindings(engine *occupancy.Engine, bindings []classify.Binding) []classify.Binding {
	out := bindings[:0]
	for _, b := range bindings {
		if _, ok := engine.Config(b.LocationID); ok {
			out = append(out, b)
		}
	}
	return out
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient and apiServer may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}

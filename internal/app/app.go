package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	server "sow-and-grow/server"
	"sow-and-grow/server/growth/catalog"
	servernet "sow-and-grow/server/internal/net"
	"sow-and-grow/server/internal/persist"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/logging"
	loggingSinks "sow-and-grow/server/logging/sinks"
)

const (
	defaultListenAddr   = ":8080"
	defaultSnapshotPath = "data/world.json"
	defaultAutosave     = 60 * time.Second
)

// Run wires the logging router, hub, persistence, and HTTP surface together
// and serves until the listener fails. Tunables come from the environment:
// LISTEN_ADDR, SNAPSHOT_PATH, AUTOSAVE_INTERVAL_SECONDS, GROWTH_CATALOG_PATH,
// and LOG_JSON_PATH.
func Run(ctx context.Context) error {
	telemetryLogger := telemetry.WrapLogger(log.Default())

	logConfig := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)},
	}
	if path := os.Getenv("LOG_JSON_PATH"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
	}

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	metrics := logging.NewMetrics()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Logger = telemetryLogger
	hubCfg.Metrics = telemetry.WrapMetrics(metrics)
	hubCfg.Publisher = router

	if path := os.Getenv("GROWTH_CATALOG_PATH"); path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load growth catalog: %w", err)
		}
		hubCfg.Catalog = loaded
	}

	hub := server.NewHubWithConfig(hubCfg)

	snapshotPath := os.Getenv("SNAPSHOT_PATH")
	if snapshotPath == "" {
		snapshotPath = defaultSnapshotPath
	}
	store := persist.NewStore(snapshotPath, persist.Config{
		Logger:    telemetryLogger,
		Publisher: router,
	})
	if err := restoreWorld(ctx, hub, store, telemetryLogger); err != nil {
		return err
	}

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	autosave := defaultAutosave
	if raw := os.Getenv("AUTOSAVE_INTERVAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			autosave = time.Duration(value) * time.Second
		} else {
			telemetryLogger.Printf("invalid AUTOSAVE_INTERVAL_SECONDS=%q: %v", raw, err)
		}
	}
	saveStop := make(chan struct{})
	saveDone := make(chan struct{})
	go autosaveLoop(hub, store, autosave, telemetryLogger, saveStop, saveDone)
	defer func() {
		// One final save so a clean shutdown never loses progress.
		close(saveStop)
		<-saveDone
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, hub.CaptureSnapshot(), time.Now()); err != nil {
			telemetryLogger.Printf("final snapshot save failed: %v", err)
		}
	}()

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:    telemetryLogger,
		Publisher: router,
		Metrics:   metrics,
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = defaultListenAddr
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetryLogger.Printf("server shutdown: %v", err)
		}
		return nil
	}
}

// restoreWorld seeds the hub from the persisted snapshot, if one exists.
// Records that fail validation against the live catalog are dropped
// individually so the rest of the world still loads.
func restoreWorld(ctx context.Context, hub *server.Hub, store *persist.Store, logger telemetry.Logger) error {
	doc, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if doc == nil {
		logger.Printf("no snapshot at %s, starting with an empty world", store.Path())
		return nil
	}
	skipped := doc.Skipped
	for _, record := range doc.Entities {
		if err := hub.RestoreEntity(record.Kind, record.X, record.Y, record.GrowthTimer); err != nil {
			skipped++
			logger.Printf("skipping persisted entity %s: %v", record.ID, err)
		}
	}
	for _, record := range doc.MatureObjects {
		hub.RestoreMature(persist.MatureObjectOf(record))
	}
	logger.Printf("restored %d entities and %d mature objects from %s (%d skipped)",
		hub.GrowthCount(), len(doc.MatureObjects), store.Path(), skipped)
	return nil
}

// autosaveLoop persists the world on a fixed interval until stop closes.
func autosaveLoop(hub *server.Hub, store *persist.Store, interval time.Duration, logger telemetry.Logger, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := store.Save(saveCtx, hub.CaptureSnapshot(), now); err != nil {
				logger.Printf("autosave failed: %v", err)
			}
			cancel()
		}
	}
}

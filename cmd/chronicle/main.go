package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/chronicle/internal/config"
	"github.com/HerbHall/chronicle/internal/event"
	"github.com/HerbHall/chronicle/internal/journal"
	"github.com/HerbHall/chronicle/internal/llm"
	"github.com/HerbHall/chronicle/internal/mcp"
	"github.com/HerbHall/chronicle/internal/records"
	"github.com/HerbHall/chronicle/internal/registry"
	"github.com/HerbHall/chronicle/internal/server"
	"github.com/HerbHall/chronicle/internal/store"
	"github.com/HerbHall/chronicle/internal/version"
	"github.com/HerbHall/chronicle/internal/ws"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "backup":
			runBackup(os.Args[2:])
			return
		case "restore":
			runRestore(os.Args[2:])
			return
		case "doctor":
			runDoctor(os.Args[2:])
			return
		case "mcp":
			runMCPStdio(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg := loadConfigOrExit(*configPath)
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Chronicle server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database and refuse schemas from a newer binary.
	dbPath := viperCfg.GetString("database.path")
	if dbPath == "" {
		dbPath = "chronicle.db"
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CheckVersion(context.Background(), version.Short()); err != nil {
		if errors.Is(err, store.ErrNewerSchema) {
			logger.Fatal("database schema is newer than this binary; upgrade chronicle or restore a matching backup",
				zap.Error(err))
		}
		logger.Fatal("failed to check database version", zap.Error(err))
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared services.
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register plugins (compile-time composition); config can disable each.
	var modules []plugin.Plugin
	if viperCfg.GetBool("plugins.records.enabled") {
		modules = append(modules, records.New())
	}
	if viperCfg.GetBool("plugins.llm.enabled") {
		modules = append(modules, llm.New())
	}
	if viperCfg.GetBool("plugins.journal.enabled") {
		modules = append(modules, journal.New())
	}
	if viperCfg.GetBool("plugins.mcp.enabled") {
		modules = append(modules, mcp.New())
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	// WebSocket live feed rides outside the plugin registry: it needs the
	// bus, not the store.
	var wsHandler *ws.Handler
	if viperCfg.GetBool("plugins.ws.enabled") {
		wsHandler = ws.NewHandler(bus, logger.Named("ws"))
		logger.Info("websocket handler initialized", zap.String("component", "ws"))
	}

	addr := fmt.Sprintf("%s:%d", viperCfg.GetString("server.host"), viperCfg.GetInt("server.port"))
	ready := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	var extraRoutes []server.SimpleRouteRegistrar
	if wsHandler != nil {
		extraRoutes = append(extraRoutes, wsHandler)
	}
	srv := server.New(addr, reg, logger, ready, extraRoutes...)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("Chronicle server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if wsHandler != nil {
		wsHandler.Close()
	}
	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("Chronicle server stopped")
}

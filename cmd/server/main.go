package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/magefree/ep3-server-go/internal/config"
	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/server"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/storage/postgres"
	"github.com/magefree/ep3-server-go/internal/storage/sqlite"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Episode 3 battle server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)
	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; admin routes disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	index, err := cards.LoadIndexFile(cfg.Data.CardsPath, logger)
	if err != nil {
		logger.Fatal("failed to load card definitions", zap.Error(err))
	}
	maps, err := server.LoadMaps(cfg.Data.MapsDir, logger)
	if err != nil {
		logger.Fatal("failed to load maps", zap.Error(err))
	}
	logger.Info("game data loaded", zap.Int("maps", len(maps)))

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	tournaments := tournament.NewManager(cfg.Tournament.StateFile, cfg.Tournament.COMDecks, nil, logger.Named("tournament"))
	if err := tournaments.Load(); err != nil {
		logger.Fatal("failed to load tournament state", zap.Error(err))
	}
	logger.Info("tournament manager initialized",
		zap.Int("tournaments", len(tournaments.GetAllTournaments())),
		zap.Int("active", tournaments.GetActiveTournamentCount()),
	)

	battles := server.NewBattleManager(index, maps, store, tournaments, server.ManagerConfig{
		MaxBattles: cfg.Server.MaxBattles,
		Settings:   battleSettings(cfg.Battle),
		RecordsDir: cfg.Data.RecordsDir,
	}, logger)

	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, logger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	grpcDone := make(chan error, 1)
	go func() {
		grpcDone <- grpcServer.Serve(ctx, lis)
	}()

	httpServer := server.NewHTTPServer(cfg.Server.WebSocket, cfg.Auth.AdminPasswordHash, battles, tournaments, store, logger.Named("http"))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("battle server initialized",
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Int("max_battles", cfg.Server.MaxBattles),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	grpcServer.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	battles.Close()
	if err := <-grpcDone; err != nil {
		logger.Error("gRPC server error", zap.Error(err))
	}
	if err := tournaments.Save(); err != nil {
		logger.Error("failed to save tournament state", zap.Error(err))
	}

	logger.Info("battle server stopped")
}

// openStore opens the record store named by cfg.Driver. "none" keeps records
// only in the records directory, if any.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.RecordStore, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN, logger.Named("sqlite"))
	case "postgres":
		return postgres.Open(ctx, cfg.DSN, cfg.MaxConns, logger.Named("postgres"))
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func battleSettings(cfg config.BattleConfig) record.Settings {
	s := record.Settings{
		DisableInterference:     cfg.DisableInterference,
		AllowNonCPUInterference: cfg.AllowNonCPUInterference,
		SkipDeckVerify:          cfg.SkipDeckVerify,
		SkipD1D2Replace:         cfg.SkipD1D2Replace,
		DisableTimeLimits:       cfg.DisableTimeLimits,
		Tournament:              cfg.Tournament,
	}
	for t := 0; t < len(cfg.TrapCardIDs) && t < battle.NumTrapTypes; t++ {
		s.TrapCardIDs[t] = cfg.TrapCardIDs[t]
	}
	return s
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// Package main provides the session server binary: the websocket surface
// for live tabletop sessions, dice resolution, and combat tracking.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/auth"
	"github.com/gametablehq/gametable/internal/config"
	"github.com/gametablehq/gametable/internal/game/dice"
	"github.com/gametablehq/gametable/internal/game/ruleset"
	"github.com/gametablehq/gametable/internal/game/session"
	"github.com/gametablehq/gametable/internal/gameserver"
	"github.com/gametablehq/gametable/internal/observability"
	"github.com/gametablehq/gametable/internal/server"
	"github.com/gametablehq/gametable/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	rulesetDir := flag.String("rulesets", "", "directory of additional game system YAML definitions (overrides config)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load game systems: built-ins plus any YAML directory.
	rulesets := ruleset.NewRegistry()
	dir := cfg.Session.RulesetDir
	if *rulesetDir != "" {
		dir = *rulesetDir
	}
	if dir != "" {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			loadStart := time.Now()
			if err := ruleset.LoadInto(rulesets, dir); err != nil {
				logger.Fatal("loading rule sets", zap.String("dir", dir), zap.Error(err))
			}
			logger.Info("rule sets loaded",
				zap.String("dir", dir),
				zap.Duration("elapsed", time.Since(loadStart)),
			)
		} else {
			logger.Warn("ruleset directory not found, using built-ins only",
				zap.String("dir", dir),
			)
		}
	}
	logger.Info("game systems registered", zap.Strings("ids", rulesets.IDs()))

	// Connect to PostgreSQL for the collaborator stores.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	campaignRepo := postgres.NewCampaignRepository(pool.DB())
	charRepo := postgres.NewCharacterRepository(pool.DB())
	recordRepo := postgres.NewSessionRecordRepository(pool.DB())

	// Assemble the realtime surface.
	roller := dice.NewRoller(dice.NewCryptoSource(), observability.Component(logger, "dice"))
	registry := session.NewRegistry(
		cfg.Session.SoloMaxPlayers,
		cfg.Session.MultiplayerMaxPlayers,
		observability.Component(logger, "session"),
	)
	roster := gameserver.NewRoster()
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	users := postgres.NewUserStore(pool.DB())
	gate := gameserver.NewGatekeeper(verifier, users, registry, roster,
		cfg.Session.EventBuffer, observability.Component(logger, "gatekeeper"))
	router := gameserver.NewRouter(registry, roster, roller, rulesets,
		campaignRepo, charRepo, recordRepo, observability.Component(logger, "router"))
	wsServer := gameserver.NewServer(cfg.Server, gate, router,
		observability.Component(logger, "websocket"))

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", wsServer)
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("session server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

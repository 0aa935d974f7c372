package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predmarket/internal/auth"
	"predmarket/internal/config"
	cronrunner "predmarket/internal/cron"
	"predmarket/internal/db"
	"predmarket/internal/events"
	"predmarket/internal/handler"
	"predmarket/internal/logger"
	"predmarket/internal/market"
	"predmarket/internal/params"
	gormrepository "predmarket/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("PM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	paramStore := &params.Store{
		Repo:     store,
		Defaults: cfg.Market,
		Logger:   log,
	}
	hub := events.NewHub(cfg.Events.SubscriberBuffer, log)
	engine := &market.Engine{
		Repo:   store,
		Params: paramStore,
		Events: hub,
		Logger: log,
		Clock:  market.SystemClock{},
	}
	sink := &market.LogSink{Logger: log}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(auth.Middleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	marketHandler := &handler.MarketHandler{Engine: engine, Repo: store}
	marketHandler.Register(router)
	betHandler := &handler.BetHandler{Engine: engine, Repo: store}
	betHandler.Register(router)
	resolutionHandler := &handler.ResolutionHandler{Engine: engine}
	resolutionHandler.Register(router)
	claimHandler := &handler.ClaimHandler{Engine: engine}
	claimHandler.Register(router)
	transferHandler := &handler.TransferHandler{Engine: engine, Sink: sink, Repo: store}
	transferHandler.Register(router)
	paramsHandler := &handler.ParamsHandler{Store: paramStore, Repo: store}
	paramsHandler.Register(router)
	eventHandler := &handler.EventHandler{Hub: hub, Repo: store}
	eventHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		batch := cfg.Cron.SweepBatchSize
		_, err = cronRunner.Add(cfg.Cron.FinalizeSweep, func(ctx context.Context) {
			if n := engine.FinalizeSweep(ctx, batch); n > 0 {
				log.Info("finalize sweep", zap.Int("finalized", n))
			}
		})
		if err != nil {
			log.Warn("cron register finalize sweep failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.ApprovalSweep, func(ctx context.Context) {
			if n := engine.ApprovalExpirySweep(ctx, batch); n > 0 {
				log.Info("approval expiry sweep", zap.Int("cancelled", n))
			}
		})
		if err != nil {
			log.Warn("cron register approval sweep failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.TransferRunner, func(ctx context.Context) {
			executed, failed := engine.RunTransfers(ctx, sink, batch)
			if executed > 0 || failed > 0 {
				log.Info("transfer run", zap.Int("executed", executed), zap.Int("failed", failed))
			}
		})
		if err != nil {
			log.Warn("cron register transfer runner failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+auth.HeaderUser+","+auth.HeaderRole)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

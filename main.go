package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"ht-server/common/logger"
	"ht-server/internal/config"
	"ht-server/internal/controller/api"
	"ht-server/internal/controller/ws"
	"ht-server/internal/infra/mysql"
	"ht-server/internal/infra/redis"
	infmq "ht-server/internal/infra/rocketmq"
	"ht-server/internal/ledger"
	"ht-server/internal/outcome"
	"ht-server/internal/service"
	"ht-server/internal/session"
	"ht-server/internal/worker"
	"ht-server/routers"
)

const outboxInterval = 2 * time.Second

func main() {
	boot, err := config.ParseBootstrap()
	if err != nil {
		panic(err)
	}
	logger.InitLogger(boot.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, boot)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	cfg.ApplyDefaults()
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}
	if err := config.StartWatch(ctx, boot, func(oldCfg, newCfg *config.Config) {
		if newCfg.Server.LogLevel != "" {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
		logger.Info("config reloaded",
			zap.Float64("min_bet", newCfg.Game.MinBetAmount),
			zap.Float64("max_bet", newCfg.Game.MaxBetAmount),
			zap.Float64("multiplier", newCfg.Game.WinMultiplier))
	}); err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		logger.Fatalf("init redis failed", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	db, err := mysql.New(cfg)
	if err != nil {
		logger.Fatalf("init mysql failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	pub := infmq.NewPublisher(cfg)

	var wg sync.WaitGroup
	rec := worker.NewRecorder(worker.RecorderOptionsFromConfig(cfg),
		&worker.DBWriter{DB: db, OutboxTopic: cfg.RocketMQ.TopicSettled}, pub)
	rec.Start()

	if pub.Enabled() {
		sc, err := infmq.NewSimpleConsumer(ctx, cfg, 5*time.Second, cfg.RocketMQ.TopicRetry)
		if err != nil {
			logger.Warn("settlement retry consumer disabled, falling back to in-process retry", zap.Error(err))
		} else {
			worker.StartRetryConsumer(ctx, &wg, sc, rec)
		}
		worker.StartOutboxDispatcher(ctx, &wg, db, pub, outboxInterval)
	}

	ledgerClient := ledger.NewHTTPClient(ledger.OptionsFromConfig(cfg))
	svc := service.NewBetService(service.Deps{
		Sessions: session.NewRedisStore(rdb),
		Ledger:   ledgerClient,
		Resolver: outcome.NewEngine(nil),
		Recorder: rec,
	})

	routers.Register(routers.Deps{
		Socket: ws.NewHandler(svc, ledgerClient),
		Checks: []api.Check{
			{Name: "redis", Ping: func(c context.Context, t time.Duration) error { return redis.Ping(c, rdb, t) }},
			{Name: "mysql", Ping: func(c context.Context, t time.Duration) error { return mysql.Ping(c, db, t) }},
		},
		DB:         db,
		EnableProm: cfg.Observability.EnableProm,
	})

	beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	beego.BConfig.CopyRequestBody = true
	go beego.Run()
	logger.Info("ht-server started", zap.Int("port", cfg.Server.Port))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := beego.BeeApp.Server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := rec.Close(shutdownCtx); err != nil {
		logger.Warn("settlement recorder close", zap.Error(err))
	}
	wg.Wait()
	if err := pub.Close(); err != nil {
		logger.Warn("rocketmq publisher close", zap.Error(err))
	}
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"codeclash/internal/config"
	"codeclash/internal/coordinator"
	"codeclash/internal/gateway"
	"codeclash/internal/logging"
	"codeclash/internal/pubsub"
	"codeclash/internal/saga"
	"codeclash/internal/store"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	defer func() { _ = logging.Close() }()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	st := store.NewRedis(rdb, cfg.SessionTTL)
	bus := pubsub.NewRedisBus(rdb)

	producer := saga.NewProducer(cfg.KafkaBrokers)
	defer func() { _ = producer.Close() }()

	hub := gateway.NewHub(bus)
	coord := coordinator.New(coordinator.Config{
		InstanceID:     cfg.InstanceID,
		SweepInterval:  cfg.SweepInterval,
		ReconnectGrace: cfg.ReconnectGrace,
	}, st, bus, hub, producer)
	if err := coord.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("coordinator start failed")
	}
	if err := hub.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("gateway start failed")
	}

	handlers := saga.NewHandlers(st, producer, hub, coord)
	consumer := saga.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID)
	consumer.Subscribe(ctx, saga.TopicPairingDecided, handlers.HandlePairingDecided)
	consumer.Subscribe(ctx, saga.TopicSessionCreateRequested, handlers.HandleSessionCreateRequested)
	consumer.Subscribe(ctx, saga.TopicSessionReady, handlers.HandleSessionReady)
	consumer.Subscribe(ctx, saga.TopicGradingResult, handlers.HandleGradingResult)
	defer func() { _ = consumer.Close() }()

	ws := gateway.NewHandler(hub, st, coord)
	r := newRouter(rdb, coord, ws)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("instance_id", cfg.InstanceID).
			Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server stopped")
}

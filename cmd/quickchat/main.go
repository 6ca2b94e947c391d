package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"quickchat/internal/api"
	"quickchat/internal/auth"
	"quickchat/internal/broker"
	"quickchat/internal/config"
	"quickchat/internal/db"
	"quickchat/internal/delivery"
	"quickchat/internal/presence"
	"quickchat/internal/push"
	"quickchat/internal/relay"
	"quickchat/internal/repository"
	"quickchat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	outboxRepo := repository.NewPostgresOutboxRepository(database)
	messageRepo := repository.NewMessageRepository(database, outboxRepo)
	userRepo := repository.NewUserRepository(database)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, log)
	go hub.Run(ctx)
	go hub.Broadcaster().Run(ctx)

	coordinator := delivery.NewCoordinator(messageRepo, userRepo, registry, log,
		cfg.MaxBodyBytes, cfg.StoreTimeout)

	if cfg.AMQPURL != "" {
		if err := startRelay(ctx, cfg, outboxRepo, registry, log); err != nil {
			log.Error("failed to start relay", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("AMQP_URL not set, relay and push workers disabled")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	server := api.NewServer(userRepo, messageRepo, coordinator, tokens, hub, cfg, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Routes(),
	}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	log.Info("server starting", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func startRelay(ctx context.Context, cfg *config.Config,
	outboxRepo *repository.PostgresOutboxRepository,
	registry *presence.Registry, log *slog.Logger) error {

	mqClient, err := broker.NewRabbitMQClient(cfg.AMQPURL)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		mqClient.Close()
	}()

	var publisher, pushPublisher relay.Publisher
	switch cfg.RelayMode {
	case "stream":
		if err := mqClient.InitStream(cfg.AMQPURL, cfg.RelayQueue); err != nil {
			return err
		}
		publisher, err = relay.NewStreamPublisher(mqClient, cfg.RelayQueue)
		if err != nil {
			return err
		}
	default:
		publisher = relay.NewAMQPPublisher(mqClient, broker.ExchangeTopic)
		pushPublisher = relay.NewAMQPPublisher(mqClient, broker.ExchangePush)
		go push.NewWorker(mqClient, log).Start(ctx)
	}

	worker := relay.NewWorker(outboxRepo, publisher, pushPublisher, registry, log,
		cfg.OutboxInterval, cfg.OutboxBatch)
	go worker.Start(ctx)
	log.Info("relay started", "mode", cfg.RelayMode)
	return nil
}

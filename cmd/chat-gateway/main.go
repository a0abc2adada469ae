package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/handler"
	"github.com/mercaline/chat-service/internal/hub"
	"github.com/mercaline/chat-service/internal/kafka"
	"github.com/mercaline/chat-service/internal/service"
	"github.com/mercaline/chat-service/internal/store"
	"github.com/mercaline/chat-service/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-gateway"})
	l := log.L()
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting chat gateway")

	st, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer st.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer producer.Close()
	l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")

	registry := hub.NewRegistry()
	dispatcher := service.NewDispatcher(registry, st, producer, cfg.Presence.TTL)
	wsHandler := handler.NewWSHandler(dispatcher, cfg.WebSocket)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     log.HTTPMiddleware(l)(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("chat gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down chat gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	l.Info().Msg("chat gateway stopped")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mercaline/chat-service/internal/batch"
	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/consumer"
	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/internal/repository"
	"github.com/mercaline/chat-service/internal/store"
	"github.com/mercaline/chat-service/pkg/database"
	"github.com/mercaline/chat-service/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-persist"})
	l := log.L()
	l.Info().Msg("starting chat persist service")

	db, err := database.New(&cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.MessageModel{}); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate message table")
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	st, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer st.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	repo := repository.NewGormMessageRepository(db)
	writer := batch.NewWriter(repo, st, cfg.Batch.FlushInterval)

	cons, err := consumer.NewConsumer(cfg.Kafka, writer)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	l.Info().
		Str("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Msg("kafka consumer created")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      log.HTTPMiddleware(l)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("health server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		l.Info().Msg("received shutdown signal")
	case err := <-consumerDone:
		if err != nil {
			l.Error().Err(err).Msg("consumer exited with error")
		}
	}

	l.Info().Msg("shutting down chat persist service")
	cancel()

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		l.Warn().Msg("consumer shutdown timed out")
	}

	cons.Close()

	// Final flush of whatever the window still holds.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	writer.Close(flushCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	l.Info().Msg("chat persist service stopped")
}

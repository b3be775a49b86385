package main

import (
	"chat-relay/auth"
	"chat-relay/gateway"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & live-connection runtime
	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	chatRepository := repositories.NewChatRepository(db)

	registry := runtime.NewRegistry()
	rooms := runtime.NewMembership()
	dispatcher := runtime.NewDispatcher(log, registry, rooms, config.DeliveryTimeout)

	// 4. Background workers under supervision
	mirror := workers.NewStatusMirror(log, userRepository, config.MirrorBufferSize)
	telemetry := workers.NewTelemetryWorker(log, config.TelemetryInterval)
	inspect := internal.NewInspectServer(log, db, registry, config.InspectPort)

	sup := workers.NewSupervisor(log)
	sup.Add(mirror, telemetry, inspect)

	// 5. Services
	var censor *moderation.Censor
	if config.CensoredWords != "" {
		replacement, err := internal.CharacterRune(config.CensorCharacter)
		if err != nil {
			return err
		}
		censor, err = moderation.NewCensor(strings.Split(config.CensoredWords, ","), replacement, log)
		if err != nil {
			return fmt.Errorf("blocklist compilation failed: %w", err)
		}
	}

	tokens := auth.NewTokenService(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	fanout := services.NewFanoutService(userRepository, messageRepository, chatRepository,
		dispatcher, censor, config.MaxContentLength)
	typing := services.NewTypingRouter(log, dispatcher)
	presence := services.NewPresenceBroadcaster(dispatcher, mirror)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. Gateway & HTTP server
	ws := gateway.NewGateway(log, registry, rooms, userRepository, chatRepository,
		tokens, fanout, typing, presence, gateway.Options{
			AuthDeadline:         config.AuthDeadline,
			WriteTimeout:         config.WriteTimeout,
			ConnectionBufferSize: config.ConnectionBufferSize,
		})
	api := gateway.NewAPI(log, authService, tokens, userRepository, chatRepository, fanout)

	mux := http.NewServeMux()
	api.Mount(mux, ws)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

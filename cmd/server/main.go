package main

import (
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

	"chat-relay/auth"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
	"chat-relay/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	replacement, err := CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB) & search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.OpenIndex(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Moderation
	words, languages, err := moderation.LoadWords()
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("%d censored words loaded [%s]",
		len(words), strings.Join(languages, ",")))
	moderator, err := moderation.NewModerator(words, replacement)
	if err != nil {
		return err
	}

	// 4. Engine state & coordinator
	messageRepository := repositories.NewMessageRepository(db, log)
	coordinator := runtime.NewCoordinator(log,
		runtime.NewRegistry(), runtime.NewRooms(), runtime.NewTypingState(),
		messageRepository,
		runtime.Options{
			HistoryLimit:     config.HistoryLimit,
			MaxContentLength: config.MaxContentLength,
			TypingTTL:        config.TypingTTL,
			BufferSize:       config.BufferSize,
			Censor:           moderator.Censor,
			DetectLanguage:   internal.DetectLanguage,
			CheckImage:       internal.CheckImagePayload,
		})

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(coordinator)
	sup.Add(workers.NewDeliveryFanout(log, coordinator.Deliveries(), config.SinkTimeout,
		sink.NewDiskSink(messageRepository, log),
		sink.NewSearchSink(index, log),
	))
	sup.Add(workers.NewTypingSweeper(log, coordinator, config.TypingSweepInterval))
	sup.Add(workers.NewHealthWorker(log, config.HealthInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Services & HTTP surface
	issuer := auth.NewTokenIssuer(config.AuthTokenSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(repositories.NewUserRepository(db), issuer)
	chatService := services.NewChatService(coordinator, messageRepository, index)

	mux := http.NewServeMux()
	httpapi.NewHandler(log, authService).Routes(mux)
	wsServer := ws.NewServer(log, chatService, issuer,
		config.ConnectionBufferSize, config.MaxFrameSize)
	mux.HandleFunc("/ws", wsServer.ServeWS)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

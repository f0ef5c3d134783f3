package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aisetech/chat-relay/backend/internal/config"
	"github.com/aisetech/chat-relay/backend/internal/handler"
	"github.com/aisetech/chat-relay/backend/internal/handler/health"
	"github.com/aisetech/chat-relay/backend/internal/handler/relay"
	"github.com/aisetech/chat-relay/backend/internal/model/persona"
	"github.com/aisetech/chat-relay/backend/internal/service/ai"
	"github.com/aisetech/chat-relay/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	assistant, ok := personaStore.FindByID(cfg.Relay.PersonaID)
	if !ok {
		log.Fatalf("unknown CHAT_PERSONA %q", cfg.Relay.PersonaID)
	}

	// Initialize the dialogue engine; missing credentials degrade to a
	// relay that reports the backend as unavailable instead of dying.
	var engine *ai.Service
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to create chat model: %v", err)
		} else if engine, err = ai.NewService(ctx, assistant, chatModel, cfg.Relay.HistoryLimit); err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			engine = nil
		} else {
			log.Printf("AI service initialized with persona %q", assistant.ID)
		}
	} else {
		log.Println("Ark credentials not configured, running without the generative backend")
	}

	store := session.NewStore(engine)
	go store.RunSweeper(ctx, cfg.Relay.SweepInterval, cfg.Relay.IdleTimeout)

	relayHandler := relay.New(store, engine, cfg.Relay)
	healthHandler := health.New(relayHandler, store, cfg.Relay.Environment, engine != nil)

	router := handler.NewRouter(relayHandler, healthHandler)

	startServer(ctx, cfg.Server, router)

	// Listener and sweeper are down; free the backend handles.
	store.ReleaseAll()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("chat relay listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/latchat/latchat/internal/chat"
	"github.com/latchat/latchat/internal/directory"
	"github.com/latchat/latchat/internal/router"
	"github.com/latchat/latchat/internal/server"
	"github.com/latchat/latchat/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting latchat relay...")

	cfg := server.NewConfigFromEnv()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize directory store: %v", err)
	}

	rtr := router.New(store)

	// The hub is both the event source for the chat handler and the push
	// transport for its sender, hence the two-step wiring.
	hub := transport.NewHub()
	sender := chat.NewSender(hub, rtr)
	hub.SetHandler(chat.NewHandler(rtr, sender))
	go hub.Run()
	log.Println("Hub started and ready to manage WebSocket connections")

	handlers := server.NewHandlers(cfg, hub)
	httpServer := server.CreateServer(cfg.Port, handlers.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down...", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown did not complete cleanly: %v", err)
	}
}

func newStore(cfg *server.Config) (directory.Store, error) {
	switch cfg.Store.Backend {
	case server.StoreRedis:
		log.Printf("Using Redis directory store at %s", cfg.Store.RedisAddr)
		return directory.NewRedisStore(context.Background(), cfg.Store.RedisAddr, cfg.Store.RedisPassword)
	default:
		log.Println("Using in-memory directory store")
		return directory.NewMemoryStore(), nil
	}
}

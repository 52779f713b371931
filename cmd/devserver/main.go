package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"SkillXChange/internal/devserver"
	"SkillXChange/internal/model"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	store := devserver.NewStore()
	seed(store)

	server := devserver.NewServer(store, logger)
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("devserver starting", zap.String("addr", *addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server.Hub().Stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("devserver stopped")
}

// seed registers two dev accounts so a pair of clients can talk out of the
// box: tokens are the user ids "1" and "2".
func seed(store *devserver.Store) {
	store.AddUser(model.UserDetails{
		ID:       "1",
		Name:     "Alice Doe",
		Username: "alice",
	})
	store.AddUser(model.UserDetails{
		ID:       "2",
		Name:     "Bob Roe",
		Username: "bob",
	})
}

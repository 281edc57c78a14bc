package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sealantern/go-auth-service/auth"
	"github.com/sealantern/go-auth-service/internal/config"
	"github.com/sealantern/go-auth-service/server"
	"github.com/sealantern/go-auth-service/session"
	"github.com/sealantern/go-auth-service/token"
	fakeuserrepo "github.com/sealantern/go-auth-service/users/repofake"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	signingKey, err := cfg.DecodeSigningKey()
	if err != nil {
		return err
	}

	codec, err := token.NewCodec(signingKey)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	// The user directory is an external collaborator; the bundled in-memory
	// implementation backs the demo deployment.
	directory := fakeuserrepo.NewFakeUserRepo()

	authService, err := auth.NewService(
		directory,
		session.NewRedisStore(redisClient),
		codec,
		auth.WithLogger(log.Logger),
		auth.WithTokenTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, authService)
	if err != nil {
		return err
	}

	displayAppname(cfg.AppName)
	httpServer := &http.Server{Addr: cfg.Addr(), Handler: srv}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe")
		}
	}()

	waitForStopSignal()
	return shutdown(httpServer)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

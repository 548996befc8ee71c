package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"roomrelay/auth"
	"roomrelay/broker"
	"roomrelay/config"
	"roomrelay/hub"
	"roomrelay/protocol"
	"roomrelay/relay"
	ws "roomrelay/websocket"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	addr := pflag.String("addr", "", "listen address, overrides HOST and PORT")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("no .env file found, using environment variables", "path", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	if *addr == "" {
		*addr = cfg.Addr()
	}

	if err := run(cfg, *addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, addr string) error {
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWTSecret, 5*time.Second)
	if err != nil {
		return err
	}
	if cfg.DevAuthEnabled() {
		slog.Warn("development tokens are accepted", "appEnv", cfg.AppEnv)
	}
	verifier := auth.NewChain(jwtVerifier, cfg.DevAuthEnabled())

	b, err := broker.Open(cfg.BrokerURL)
	if err != nil {
		return err
	}
	defer b.Close()

	registry := hub.New()
	handler := protocol.NewHandler(registry, verifier)
	events := relay.New(b, cfg.EventsChannel, registry)

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", healthHandler)
	r.Get("/stats", statsHandler(registry, events))
	r.Get("/ws", ws.Serve(upgrader, handler, cfg.SendBuffer))

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return events.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(levelName, format string) {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func statsHandler(registry *hub.Hub, events *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, subscriptions := registry.Stats()
		relayed, dropped := events.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"connections":   connections,
			"subscriptions": subscriptions,
			"relayed":       relayed,
			"dropped":       dropped,
		})
	}
}

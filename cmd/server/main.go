// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/auth"
	"github.com/typeloop/typeloop/internal/database"
	"github.com/typeloop/typeloop/internal/handlers"
	"github.com/typeloop/typeloop/internal/middleware"
	"github.com/typeloop/typeloop/internal/room"
	"github.com/typeloop/typeloop/internal/scoring"
	"github.com/typeloop/typeloop/internal/session"
	"github.com/typeloop/typeloop/internal/stats"
)

func main() {
	// With JWT key files configured, sessions survive restarts; otherwise a
	// fresh ephemeral key pair is generated and clients log in again.
	if priv, pub := os.Getenv("JWT_PRIVATE_KEY_FILE"), os.Getenv("JWT_PUBLIC_KEY_FILE"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			log.Fatalf("failed to load jwt keys: %v", err)
		}
	} else {
		auth.Init()
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer store.Close()

	// scoring dispatch is best-effort; run without it if redis is absent
	var dispatcher stats.Dispatcher
	if publisher, err := scoring.ConnectPublisher(logger); err != nil {
		logger.WithError(err).Warn("scoring queue unavailable, analytics dispatch disabled")
	} else {
		dispatcher = publisher
		defer publisher.Close()
	}

	clock := clockwork.NewRealClock()
	sclock := session.NewClock(clock)

	registry := room.NewRegistry(store, sclock, room.Config{
		CodeAttempts: envInt("JOIN_CODE_ATTEMPTS", room.DefaultCodeAttempts),
	}, logger)
	tracker := stats.NewTracker(store, logger)
	analytics := stats.NewAnalytics(store, dispatcher, logger)
	leaderboard := stats.NewLeaderboard(store)

	sweeper := room.NewSweeper(store, clock,
		time.Duration(envInt("SWEEP_INTERVAL_SEC", 30))*time.Second, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := handlers.NewServer(registry, tracker, analytics, leaderboard, store, logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	// user endpoints
	mux.Handle("/user/create", logged(handlers.CreateUserHandler(srv)))
	mux.Handle("/user/login", logged(handlers.LoginHandler(srv)))

	// room lifecycle
	mux.Handle("/room/create", logged(handlers.CreateRoomHandler(srv)))
	mux.Handle("/room/join", logged(handlers.JoinRoomHandler(srv)))
	mux.Handle("/room/transition", logged(handlers.TransitionRoomHandler(srv)))
	mux.Handle("/room/get", logged(handlers.GetRoomHandler(srv)))
	mux.Handle("/room/leave", logged(handlers.LeaveRoomHandler(srv)))

	// race telemetry
	mux.Handle("/speed/upsert", logged(handlers.UpsertSpeedHandler(srv)))
	mux.Handle("/stats/flush", logged(handlers.FlushStatsHandler(srv)))
	mux.Handle("/leaderboard", logged(handlers.LeaderboardHandler(srv)))

	handler := cors.New(cors.Options{
		AllowedOrigins:   splitEnv("CORS_ORIGINS", "*"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(mux)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func splitEnv(key, def string) []string {
	if v := os.Getenv(key); v != "" {
		return []string{v}
	}
	return []string{def}
}

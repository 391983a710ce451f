package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"optifolio/internal/api"
	"optifolio/internal/auth"
	"optifolio/internal/db"
	"optifolio/internal/logger"
	"optifolio/internal/marketdata"
	"optifolio/internal/task"
)

var version = "dev"

func main() {
	port := flag.Int("port", 8720, "HTTP server port")
	flag.Parse()

	logger.Banner(version)

	database, err := db.Open()
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	cfg := database.LoadConfig()

	market := marketdata.NewClient(database,
		time.Duration(cfg.PriceCacheTTLMinutes)*time.Minute,
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second)
	tasks := task.NewManager(database)
	sessions := auth.NewSessionStore(database.SqlDB())
	if n, err := sessions.PurgeExpired(); err == nil && n > 0 {
		logger.Info("AUTH", fmt.Sprintf("purged %d expired sessions", n))
	}

	// Empty secret disables the auth-gated endpoints.
	secret := os.Getenv("OPTIFOLIO_API_SECRET")
	if secret == "" {
		logger.Warn("AUTH", "OPTIFOLIO_API_SECRET not set, token issuance disabled")
	}

	srv := api.NewServer(cfg, database, market, tasks, sessions, secret)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

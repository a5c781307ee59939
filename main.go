package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dynshop/internal/api"
	"dynshop/internal/db"
	"dynshop/internal/engine"
	"dynshop/internal/logger"
	"dynshop/internal/recipes"
)

var version = "dev"

func main() {
	port := flag.Int("port", 13380, "HTTP server port")
	dataDir := flag.String("data", "", "data directory (default ./data)")
	flag.Parse()

	logger.Banner(version)

	dir := *dataDir
	if dir == "" {
		wd, _ := os.Getwd()
		dir = filepath.Join(wd, "data")
	}
	os.MkdirAll(dir, 0755)

	// Open SQLite database
	database, err := db.Open(dir)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	// Load config from SQLite
	cfg := database.LoadConfig()

	// Crafting recipes (recipes.json or built-in defaults)
	graph, err := recipes.Load(filepath.Join(dir, "recipes.json"))
	if err != nil {
		logger.Error("RECIPES", fmt.Sprintf("Load failed: %v", err))
		os.Exit(1)
	}

	eng := engine.New(cfg, graph, database)
	eng.Start()

	srv := api.NewServer(cfg, eng, database)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		logger.Server(addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server", fmt.Sprintf("Failed: %v", err))
			os.Exit(1)
		}
	}()

	// Flush market state to SQLite before exiting.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Server", "Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
	eng.Stop()
	logger.Success("Server", "Goodbye")
}

package main

import (
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

//go:embed static/*
var staticFiles embed.FS

type AppConfig struct {
	Port     string
	LogLevel slog.Level
}

func loadConfig() *AppConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return &AppConfig{
		Port:     port,
		LogLevel: parseLevel(os.Getenv("LOG_LEVEL")),
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newMux() (*http.ServeMux, error) {
	// Serve static files from embedded filesystem
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", handleWebSocket)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux, nil
}

func main() {
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	mux, err := newMux()
	if err != nil {
		log.Fatal(err)
	}

	addr := ":" + cfg.Port
	slog.Info("Starting door simulator web server", "addr", addr)
	slog.Info("Open http://localhost:" + cfg.Port + " in your browser")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

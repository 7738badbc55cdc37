package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchmarny/lstvscan/pkg/config"
	"github.com/mchmarny/lstvscan/pkg/logging"
	"github.com/mchmarny/lstvscan/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080
)

var (
	portFlag = &urfave.IntFlag{
		Name:  "port",
		Usage: "Port on which the server will listen",
		Value: serverPortDefault,
	}

	serveCmd = &urfave.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Serve results, candidates and metrics as a local JSON API",
		Action:  cmdServe,
		Flags: []urfave.Flag{
			portFlag,
		},
	}
)

func cmdServe(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	address := fmt.Sprintf("127.0.0.1:%d", cmd.Int(portFlag.Name))

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewStoreCollector(cfg.DB),
		collectors.NewGoCollector(),
	)

	s := &http.Server{
		Addr:           address,
		Handler:        logRequests(logger, makeRouter(cfg.DB, cfg.Config, reg)),
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("error starting server", "error", err)
			stop()
		}
	}()

	slog.Info("server started", "address", "http://"+address)

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(db *sql.DB, c *config.Config, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Data API
	mux.HandleFunc("GET /data/state", stateAPIHandler(db))
	mux.HandleFunc("GET /data/runs", runsAPIHandler(db))
	mux.HandleFunc("GET /data/runs/{id}", runAPIHandler(db))
	mux.HandleFunc("GET /data/results", resultsAPIHandler(db))
	mux.HandleFunc("GET /data/skips", skipsAPIHandler(db))
	mux.HandleFunc("GET /data/candidates", candidatesAPIHandler(db, c))

	// Metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one record per request once it has been served.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String())
	})
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/report"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

const serverShutdownTimeout = 10 * time.Second

// ServeCommand holds the flags of the serve command.
type ServeCommand struct {
	app *app

	host string
	port int
}

func newServeCommand(a *app) *cobra.Command {
	sc := &ServeCommand{app: a}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve coverage metrics and trends over HTTP",
		Long: `Serve the build history over HTTP:

  /metrics                  Prometheus metrics of covergate itself
  /metrics/coverage         Coverage gauges of the latest build
  /trend                    Trend chart (?metric=line&theme=dark&builds=20&format=json)
  /api/statistics/latest    Statistics of the latest build
  /api/builds               Recorded builds
  /healthz                  Liveness check`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.host, "host", "", "Listen host (default from config)")
	cmd.Flags().IntVar(&sc.port, "port", 0, "Listen port (default from config)")

	return cmd
}

func (sc *ServeCommand) run(cmd *cobra.Command, _ []string) error {
	reader, metricsHandler, err := observability.PrometheusHandler()
	if err != nil {
		return err
	}

	shutdown, err := sc.app.setup(cmd, observability.ModeServe, reader)
	if err != nil {
		return err
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := sc.app.cfg

	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.Path, sc.app.logger)
	if err != nil {
		return err
	}

	if store == nil {
		return ErrNoHistory
	}
	defer store.Close()

	handler := &historyServer{
		store:   store,
		logger:  sc.app.logger,
		metrics: metricsHandler,
		theme:   trend.ParseTheme(cfg.Trend.Theme),
		tags:    cfg.Trend.Metrics,
		window:  cfg.Trend.Window(),
		now:     sc.app.now,
	}

	host := firstNonEmpty(sc.host, cfg.Server.Host)

	port := cfg.Server.Port
	if sc.port > 0 {
		port = sc.port
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      handler.routes(sc.app.tracer),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)

	go func() {
		sc.app.logger.Info("covergate server starting", "addr", "http://"+server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	sc.app.logger.Info("covergate server stopping")

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	return nil
}

// historyServer serves the build history.
type historyServer struct {
	store   history.Store
	logger  *slog.Logger
	metrics http.Handler
	theme   trend.Theme
	tags    []string
	window  trend.Window
	now     func() time.Time
}

// routes returns the mux of all endpoints wrapped in tracing middleware.
func (s *historyServer) routes(tracer trace.Tracer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)
	mux.HandleFunc("GET /metrics/coverage", s.handleCoverageMetrics)
	mux.HandleFunc("GET /trend", s.handleTrend)
	mux.HandleFunc("GET /api/statistics/latest", s.handleLatest)
	mux.HandleFunc("GET /api/builds", s.handleBuilds)

	return observability.HTTPMiddleware(tracer, mux)
}

func (s *historyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *historyServer) handleCoverageMetrics(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.latest(w, req)
	if !ok {
		return
	}

	exporter := report.NewExporter()
	exporter.Observe(rec.Build.Number, rec.Statistics, nil)

	promhttp.HandlerFor(exporter.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, req)
}

func (s *historyServer) handleTrend(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	tags := s.tags
	if requested := query["metric"]; len(requested) > 0 {
		tags = requested
	}

	window := s.window
	if raw := query.Get("builds"); raw != "" {
		builds, err := strconv.Atoi(raw)
		if err != nil || builds < 0 {
			http.Error(w, "invalid builds: "+raw, http.StatusBadRequest)

			return
		}

		window.MaxBuilds = builds
	}

	model, err := chartFromStore(req.Context(), s.store, tags, window, s.now())
	if errors.Is(err, coverage.ErrUnknownMetric) {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if err != nil {
		s.internalError(w, req, err)

		return
	}

	if query.Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")

		err = writeChartJSON(w, model)
		if err != nil {
			s.logger.ErrorContext(req.Context(), "failed to encode trend", "error", err)
		}

		return
	}

	theme := s.theme
	if name := query.Get("theme"); name != "" {
		theme = trend.ParseTheme(name)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err = trend.RenderHTML(w, model, theme)
	if err != nil {
		s.logger.ErrorContext(req.Context(), "failed to render trend", "error", err)
	}
}

type latestResponse struct {
	Build      trend.Build         `json:"build"`
	Status     history.BuildStatus `json:"status"`
	RecordedAt time.Time           `json:"recorded_at"`
	Statistics any                 `json:"statistics"`
}

func (s *historyServer) handleLatest(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.latest(w, req)
	if !ok {
		return
	}

	s.writeJSON(w, req, latestResponse{
		Build:      rec.Build,
		Status:     rec.Status,
		RecordedAt: rec.RecordedAt,
		Statistics: rec.Statistics,
	})
}

type buildEntry struct {
	Number      int                 `json:"number"`
	DisplayName string              `json:"display_name"`
	Status      history.BuildStatus `json:"status"`
	RecordedAt  time.Time           `json:"recorded_at"`
	HasCoverage bool                `json:"has_coverage"`
}

func (s *historyServer) handleBuilds(w http.ResponseWriter, req *http.Request) {
	records, err := s.store.List(req.Context())
	if err != nil {
		s.internalError(w, req, err)

		return
	}

	builds := make([]buildEntry, 0, len(records))

	for _, rec := range records {
		builds = append(builds, buildEntry{
			Number:      rec.Build.Number,
			DisplayName: rec.Build.DisplayName(),
			Status:      rec.Status,
			RecordedAt:  rec.RecordedAt,
			HasCoverage: rec.HasCoverage(),
		})
	}

	s.writeJSON(w, req, builds)
}

// latest returns the newest build or writes 404 when the history is empty.
func (s *historyServer) latest(w http.ResponseWriter, req *http.Request) (history.Record, bool) {
	rec, err := history.Latest(req.Context(), s.store)
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, ErrNoBuilds.Error(), http.StatusNotFound)

		return history.Record{}, false
	}

	if err != nil {
		s.internalError(w, req, err)

		return history.Record{}, false
	}

	return rec, true
}

func (s *historyServer) internalError(w http.ResponseWriter, req *http.Request, err error) {
	s.logger.ErrorContext(req.Context(), "request failed", "path", req.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *historyServer) writeJSON(w http.ResponseWriter, req *http.Request, value any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		s.logger.ErrorContext(req.Context(), "failed to encode JSON response", "error", err)
	}
}

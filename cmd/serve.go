package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/analytics"
	"github.com/sells-group/transition-cli/internal/ingest"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/monitoring"
	"github.com/sells-group/transition-cli/internal/store"
)

var (
	servePort   int
	serveAwards string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve detections, run history and analytics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var awards []model.Award
		if serveAwards != "" {
			awardsPath := serveAwards
			cleanup, err := localizeInputs(ctx, cfg.Fetch, &awardsPath)
			if err != nil {
				return eris.Wrap(err, "fetch awards")
			}
			defer cleanup()
			if awards, _, err = ingest.ReadAwards(ctx, awardsPath); err != nil {
				return eris.Wrap(err, "read awards")
			}
		}

		api := newAPIServer(st, awards, cfg.Transition.AlgorithmVersion, cfg.Monitoring.LookbackWindowHours)

		checker := monitoring.NewChecker(api.collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveAwards, "awards", "", "award extract used as the /analytics population")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds the read-only HTTP handlers.
type apiServer struct {
	store            store.Store
	awards           []model.Award
	algorithmVersion string
	lookbackHours    int
	collector        *monitoring.Collector
	registry         *prometheus.Registry
}

func newAPIServer(st store.Store, awards []model.Award, algorithmVersion string, lookbackHours int) *apiServer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	return &apiServer{
		store:            st,
		awards:           awards,
		algorithmVersion: algorithmVersion,
		lookbackHours:    lookbackHours,
		collector:        monitoring.NewCollector(st),
		registry:         reg,
	}
}

func (s *apiServer) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/health", s.handleRunHealth)
	})
	r.Route("/detections", func(r chi.Router) {
		r.Get("/", s.handleListDetections)
		r.Get("/{id}", s.handleGetDetection)
	})
	r.Get("/analytics", s.handleAnalytics)
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleRunHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.lookbackHours)
	if err != nil {
		s.internalError(w, "collect run health", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleListDetections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DetectionFilter{
		AlgorithmVersion: q.Get("algorithm_version"),
		AwardID:          q.Get("award_id"),
		VendorKey:        q.Get("vendor_key"),
	}
	if b := q.Get("min_band"); b != "" {
		band := model.ConfidenceBand(b)
		if band != model.BandHigh && band != model.BandLikely && band != model.BandPossible {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown band %q", b))
			return
		}
		filter.MinBand = band
	}
	var err error
	if filter.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = intParam(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detections, err := s.store.ListDetections(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list detections", err)
		return
	}
	if detections == nil {
		detections = []model.TransitionDetection{}
	}
	writeJSON(w, http.StatusOK, detections)
}

func (s *apiServer) handleGetDetection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.store.GetDetection(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "detection not found")
		return
	}
	if err != nil {
		s.internalError(w, "get detection", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if len(s.awards) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no award population loaded")
		return
	}
	version := r.URL.Query().Get("algorithm_version")
	if version == "" {
		version = s.algorithmVersion
	}
	detections, err := loadStoredDetections(r.Context(), s.store, store.DetectionFilter{AlgorithmVersion: version})
	if err != nil {
		s.internalError(w, "load detections", err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Compute(s.awards, detections))
}

func (s *apiServer) internalError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("serve: "+action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, action+" failed")
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("serve: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/monitoring"
)

var servePort int

type resolver interface {
	Resolve(ctx context.Context, tenantID string, threadIDs []string) (*model.ResolutionReport, error)
}

type analyzer interface {
	Analyze(ctx context.Context, tenantID, threadID string) *model.AnalysisReport
}

type stageCounter interface {
	Counts(ctx context.Context, tenantID string) (map[model.Stage]int, error)
}

// api is the set of engines behind the HTTP routes.
type api struct {
	resolver    resolver
	analyzer    analyzer
	stages      stageCounter
	apiKey      string
	corsOrigins []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for resolution and analysis requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(cfg.Monitoring.Tenants) > 0 {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Tracker),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		router := buildRouter(&api{
			resolver:    env.Resolver,
			analyzer:    env.Analyzer,
			stages:      env.Tracker,
			apiKey:      cfg.Server.APIKey,
			corsOrigins: cfg.Server.CORSOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func buildRouter(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := a.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(a.apiKey))
		r.Post("/resolve", a.handleResolve)
		r.Post("/analyze", a.handleAnalyze)
		r.Get("/stages", a.handleStages)
	})

	return r
}

func (a *api) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tenant    string   `json:"tenant"`
		ThreadIDs []string `json:"thread_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	if len(req.ThreadIDs) == 0 {
		writeError(w, http.StatusBadRequest, "thread_ids is required")
		return
	}

	report, err := a.resolver.Resolve(r.Context(), req.Tenant, req.ThreadIDs)
	if err != nil {
		zap.L().Error("resolve request failed", zap.String("tenant", req.Tenant), zap.Error(err))
		if report != nil {
			writeJSON(w, http.StatusInternalServerError, report)
			return
		}
		writeError(w, http.StatusInternalServerError, "resolution failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tenant   string `json:"tenant"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tenant == "" || req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "tenant and thread_id are required")
		return
	}

	report := a.analyzer.Analyze(r.Context(), req.Tenant, req.ThreadID)
	status := http.StatusOK
	if !report.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

func (a *api) handleStages(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	counts, err := a.stages.Counts(r.Context(), tenant)
	if err != nil {
		zap.L().Error("stage counts failed", zap.String("tenant", tenant), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stage counts unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenant": tenant, "counts": counts})
}

// bearerAuth rejects requests without the configured key. An empty key
// disables the check.
func bearerAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

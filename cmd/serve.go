package main

import (
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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/safeops-labs/lawsuggest/internal/feedback"
	"github.com/safeops-labs/lawsuggest/internal/lawindex"
	"github.com/safeops-labs/lawsuggest/internal/model"
	"github.com/safeops-labs/lawsuggest/internal/suggest"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the law suggestion API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/law", func(r chi.Router) {
		r.Post("/suggest", handleSuggest(env))
		r.Get("/ruleset", handleRuleset(env))
		r.Post("/ruleset/reload", handleRulesetReload(env))
		r.Get("/search", handleSearch(env))
		r.Get("/laws/{id}", handleGetLaw(env))
		r.Get("/stats", handleStats(env))
		r.Post("/keywords", handleKeywords(env))
		r.Post("/feedback", handleFeedback(env))
		r.Get("/feedback/{hash}", handleGetFeedback(env))
	})

	return r
}

// rateLimit applies a process-wide token bucket to all requests.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleSuggest(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			model.IncidentQuery
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}

		limit := req.Limit
		if limit <= 0 {
			limit = cfg.Suggest.DefaultLimit
		}

		result, err := env.Service.Suggest(r.Context(), req.IncidentQuery, limit)
		if err != nil {
			var re *suggest.RetrievalError
			if errors.As(err, &re) {
				zap.L().Error("suggest retrieval failed", zap.Error(err))
				writeError(w, http.StatusBadGateway, "retrieval_failed", "law index unavailable")
				return
			}
			zap.L().Error("suggest failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "suggestion failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleRuleset(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := env.Rules.Snapshot()
		counts := make(map[string]int, len(rs.Rules))
		for _, cat := range rs.Categories() {
			rule := rs.Rules[cat]
			counts[cat] = len(rule.Keywords) + len(rule.Patterns)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":     rs.Version,
			"updated_at":  rs.UpdatedAt,
			"description": rs.Description,
			"alpha":       rs.Alpha,
			"beta":        rs.Beta,
			"categories":  counts,
		})
	}
}

func handleRulesetReload(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := env.Rules.Reload(); err != nil {
			zap.L().Error("ruleset reload failed", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, "invalid_ruleset", eris.ToString(err, false))
			return
		}
		rs := env.Rules.Snapshot()
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "reloaded",
			"version":    rs.Version,
			"updated_at": rs.UpdatedAt,
		})
	}
}

func handleSearch(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		result, err := env.Index.Browse(r.Context(), lawindex.BrowseFilter{
			Query:     q.Get("q"),
			LawTitle:  q.Get("law_title"),
			ArticleNo: q.Get("article_no"),
			Page:      page,
			Limit:     limit,
		})
		if err != nil {
			zap.L().Error("law search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "search failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleGetLaw(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		law, err := env.Index.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, lawindex.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "law article not found")
			return
		}
		if err != nil {
			zap.L().Error("law lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, law)
	}
}

func handleStats(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := env.Index.Stats(r.Context())
		if err != nil {
			zap.L().Error("stats failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "stats failed")
			return
		}
		version, updatedAt := env.Service.RulesetVersion()
		writeJSON(w, http.StatusOK, map[string]any{
			"index":           stats,
			"ruleset_version": version,
			"ruleset_updated": updatedAt,
		})
	}
}

func handleKeywords(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q model.IncidentQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		keywords := env.Keywords.Extract(r.Context(), q)
		if keywords == nil {
			keywords = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"keywords": keywords})
	}
}

func handleFeedback(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			model.IncidentQuery
			Selections []feedback.Selection `json:"selections"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		if len(req.Selections) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "selections are required")
			return
		}

		hash, err := env.Feedback.Save(r.Context(), req.IncidentQuery, req.Selections)
		if err != nil {
			zap.L().Error("feedback save failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "feedback save failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"document_hash": hash})
	}
}

func handleGetFeedback(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := env.Feedback.Get(r.Context(), chi.URLParam(r, "hash"))
		if err != nil {
			zap.L().Error("feedback lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "feedback lookup failed")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "not_found", "no feedback for document")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

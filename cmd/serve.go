package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/dispatch"
	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/monitoring"
	"github.com/humtech/outreach-cli/internal/pipeline"
	"github.com/humtech/outreach-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review and dispatch HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitor.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitor),
				cfg.Monitor,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/outreach/review", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		items, err := env.Store.BatchReview(r.Context(), date)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		counts, err := env.Store.BatchCounts(r.Context(), date)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			BatchDate string             `json:"batch_date"`
			Counts    *model.BatchCounts `json:"counts"`
			Items     []model.ReviewItem `json:"items"`
		}{date, counts, items})
	})

	r.Post("/outreach/lead/{attemptID}/edit", func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")

		var req struct {
			Opener string `json:"opener"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Opener == "" {
			writeError(w, http.StatusBadRequest, "opener is required")
			return
		}

		if err := env.Store.OverrideOpener(r.Context(), attemptID, req.Opener); err != nil {
			writeStoreError(w, err)
			return
		}

		zap.L().Info("opener overridden", zap.String("attempt", attemptID))
		writeJSON(w, http.StatusOK, map[string]string{"status": "edited", "attempt_id": attemptID})
	})

	r.Post("/outreach/lead/{attemptID}/remove", func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")

		if err := env.Store.RemoveAttempt(r.Context(), attemptID); err != nil {
			writeStoreError(w, err)
			return
		}

		zap.L().Info("attempt removed", zap.String("attempt", attemptID))
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "attempt_id": attemptID})
	})

	r.Post("/outreach/suppress", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email  string `json:"email"`
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}
		if req.Reason == "" {
			req.Reason = "manual"
		}

		if err := env.Store.AddSuppression(r.Context(), req.Email, req.Reason); err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "suppressed", "email": req.Email})
	})

	r.Post("/outreach/pipeline/run", func(w http.ResponseWriter, r *http.Request) {
		var input pipeline.LeadInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if input.Lead.Email == "" {
			writeError(w, http.StatusBadRequest, "lead email is required")
			return
		}
		if input.Lead.BatchDate == "" {
			input.Lead.BatchDate = time.Now().UTC().Format("2006-01-02")
		}

		result := env.Pipeline.Process(r.Context(), input)
		if result.Err != nil {
			writeError(w, http.StatusBadGateway, result.Err.Error())
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Outcome model.Outcome  `json:"outcome"`
			Attempt *model.Attempt `json:"attempt,omitempty"`
		}{result.Outcome, result.Attempt})
	})

	r.Post("/outreach/send", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Dispatch.WebhookURL == "" {
			writeError(w, http.StatusServiceUnavailable, "dispatch webhook not configured")
			return
		}

		var req struct {
			Date string `json:"date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Date == "" {
			req.Date = time.Now().UTC().Format("2006-01-02")
		}

		sender := dispatch.NewWebhookSender(cfg.Dispatch.WebhookURL, cfg.Dispatch.APIKey)
		stats, err := dispatch.New(env.Store, sender).Run(r.Context(), req.Date)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadySent):
		writeError(w, http.StatusConflict, "lead already sent, attempt is immutable")
	default:
		zap.L().Error("store operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

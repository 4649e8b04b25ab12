package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/draftzen/internal/discovery"
	"github.com/sells-group/draftzen/internal/enrich"
	"github.com/sells-group/draftzen/internal/ledger"
	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/resilience"
	"github.com/sells-group/draftzen/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
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
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Orch, env.Store, env.Ledger, env.Promoter, cfg.Discovery.MaxCandidates),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
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
	rootCmd.AddCommand(serveCmd)
}

// enricher is the slice of the orchestrator the HTTP layer uses.
type enricher interface {
	ExtractOutline(ctx context.Context, accountID, draftID string) (*model.OutlineResult, error)
	GenerateDescription(ctx context.Context, accountID, draftID string) (string, error)
	KeywordSuggestions(ctx context.Context, accountID, draftID, input string) ([]model.KeywordIdea, error)
	KeywordsToInclude(ctx context.Context, accountID, draftID, keyword string) ([]model.KeywordTerm, error)
}

func newRouter(orch enricher, st store.Store, led ledger.Ledger, promoter *discovery.Promoter, maxCandidates int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Account-ID"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/drafts", handleCreateDraft(st, led, promoter, maxCandidates))
		r.Get("/drafts", handleListDrafts(st))
		r.Get("/drafts/{id}", handleGetDraft(st))
		r.Delete("/drafts/{id}", handleDeleteDraft(st))
		r.Post("/drafts/{id}/outline", handleOutline(orch))
		r.Post("/drafts/{id}/description", handleDescription(orch))
		r.Post("/keywords/suggest", handleKeywordSuggest(orch))
		r.Post("/keywords/include", handleKeywordsInclude(orch))
		r.Get("/credits/{account}", handleGetCredits(led))
		r.Get("/credits/{account}/transactions", handleGetTransactions(led))
		r.Post("/admin/credits/{account}", handleAdminCredits(led))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Insufficient credits
// surface as 402 with the shortfall; an exhausted polling budget as 408.
func writeError(w http.ResponseWriter, err error) {
	var ice *ledger.InsufficientCreditsError
	switch {
	case errors.As(err, &ice):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":     "insufficient credits",
			"available": ice.Available,
			"required":  ice.Required,
		})
	case errors.Is(err, store.ErrDraftNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, enrich.ErrTaskTimeout):
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": "remote task timed out"})
	default:
		if kind, ok := resilience.KindOf(err); ok && kind == resilience.KindUnauthorized {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream credentials rejected"})
			return
		}
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func accountID(r *http.Request) string {
	return r.Header.Get("X-Account-ID")
}

func handleCreateDraft(st store.Store, led ledger.Ledger, promoter *discovery.Promoter, maxCandidates int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct := accountID(r)
		if acct == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Account-ID header is required"})
			return
		}

		var req struct {
			TopicKeyword string               `json:"topic_keyword"`
			Results      []model.SearchResult `json:"search_results,omitempty"`
			URLs         []string             `json:"urls,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.TopicKeyword == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic_keyword is required"})
			return
		}

		// New accounts get the configured signup grant on first contact.
		if _, err := led.EnsureAccount(r.Context(), acct); err != nil {
			writeError(w, err)
			return
		}

		var candidates []model.CandidateDocument
		switch {
		case len(req.Results) > 0:
			candidates = promoter.Candidates(req.Results, maxCandidates)
		default:
			for i, u := range req.URLs {
				candidates = append(candidates, model.CandidateDocument{Reference: u, PriorityRank: i + 1})
			}
		}

		draft, err := st.CreateDraft(r.Context(), &model.Draft{
			AccountID:    acct,
			TopicKeyword: req.TopicKeyword,
			Candidates:   candidates,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, draft)
	}
}

func handleListDrafts(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drafts, err := st.ListDrafts(r.Context(), accountID(r), store.DraftFilter{})
		if err != nil {
			writeError(w, err)
			return
		}
		if drafts == nil {
			drafts = []model.Draft{}
		}
		writeJSON(w, http.StatusOK, drafts)
	}
}

func handleGetDraft(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, err := st.GetDraft(r.Context(), accountID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draft)
	}
}

func handleDeleteDraft(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteDraft(r.Context(), accountID(r), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleOutline(orch enricher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := orch.ExtractOutline(r.Context(), accountID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleDescription(orch enricher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		description, err := orch.GenerateDescription(r.Context(), accountID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"description": description})
	}
}

func handleKeywordSuggest(orch enricher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input   string `json:"input"`
			DraftID string `json:"draft_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
			return
		}

		ideas, err := orch.KeywordSuggestions(r.Context(), accountID(r), req.DraftID, req.Input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"keywords": ideas})
	}
}

func handleKeywordsInclude(orch enricher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Keyword string `json:"keyword"`
			DraftID string `json:"draft_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Keyword == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword is required"})
			return
		}

		terms, err := orch.KeywordsToInclude(r.Context(), accountID(r), req.DraftID, req.Keyword)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"keywords": terms})
	}
}

func handleGetCredits(led ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := led.Account(r.Context(), chi.URLParam(r, "account"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func handleGetTransactions(led ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txns, err := led.Transactions(r.Context(), chi.URLParam(r, "account"), 100)
		if err != nil {
			writeError(w, err)
			return
		}
		if txns == nil {
			txns = []model.CreditTransaction{}
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func handleAdminCredits(led ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
			Amount int64  `json:"amount"`
			Note   string `json:"note,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		account := chi.URLParam(r, "account")
		var (
			balance int64
			err     error
		)
		switch req.Action {
		case "set":
			balance, err = led.SetBalance(r.Context(), account, req.Amount)
		case "add":
			balance, err = led.Credit(r.Context(), account, model.OpAdminCreditAddition, req.Amount, req.Note)
		case "deduct":
			balance, err = led.Correct(r.Context(), account, req.Amount, req.Note)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be set, add, or deduct"})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"account_id": account, "balance": balance})
	}
}

// Package handlers serves read access to player mailboxes.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aaronwang/auction-house/shared/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// MailReader lists delivered mail.
type MailReader interface {
	ListMail(ctx context.Context, recipient uint32, limit int) ([]models.Mail, error)
}

// Handler contains HTTP request handlers
type Handler struct {
	mail MailReader
	log  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(mail MailReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mail: mail, log: logger.With("component", "http")}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/players/{player}/mail", h.ListMail).Methods("GET")
	return router
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mail-worker",
	})
}

// ListMail returns a player's mailbox, newest first.
func (h *Handler) ListMail(w http.ResponseWriter, r *http.Request) {
	player, err := strconv.ParseUint(mux.Vars(r)["player"], 10, 32)
	if err != nil || player == 0 {
		respondError(w, http.StatusBadRequest, "Invalid player id")
		return
	}
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(limit, maxLimit)
	}

	mails, err := h.mail.ListMail(r.Context(), uint32(player), limit)
	if err != nil {
		h.log.Error("list mail failed", slog.Uint64("player", player), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to read mailbox")
		return
	}
	if mails == nil {
		mails = []models.Mail{}
	}
	respondJSON(w, http.StatusOK, mails)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	stderrors "errors"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/engine/mailgate"
	"mailpanel/internal/pkg/errors"
	"mailpanel/internal/pkg/validator"
	"mailpanel/internal/platform/auth"
	"mailpanel/internal/platform/repositories"
)

type MailboxHandler struct {
	mailboxRepo *repositories.MailboxRepository
	userRepo    *repositories.UserRepository
	sender      *mailgate.Sender
}

func NewMailboxHandler(mailboxRepo *repositories.MailboxRepository, userRepo *repositories.UserRepository, sender *mailgate.Sender) *MailboxHandler {
	return &MailboxHandler{mailboxRepo: mailboxRepo, userRepo: userRepo, sender: sender}
}

// List returns the caller's own inbox, newest first.
func (h *MailboxHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.mailboxRepo.ListForRecipient(user.Email, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// Sent returns everything the caller dispatched, locally delivered or
// relayed, newest first.
func (h *MailboxHandler) Sent(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.mailboxRepo.ListForSender(user.Email, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (h *MailboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	msgID := params.ByName("message_id")

	msg, err := h.mailboxRepo.GetByID(msgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if msg == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Message not found", nil)
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil || !strings.EqualFold(msg.Recipient, user.Email) {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Not your message", nil)
		return
	}

	if err := h.mailboxRepo.MarkRead(msgID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to mark read", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SendMailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *MailboxHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	var req SendMailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.IsValidEmail(req.To); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid recipient address", map[string]string{"field": "to"})
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "subject is required", map[string]string{"field": "subject"})
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	local, err := h.sender.Send(user.Email, req.To, req.Subject, req.Body)
	if err != nil {
		if stderrors.Is(err, errors.ErrTransientStore) {
			errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeTransient, "Storage temporarily unavailable", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to send message", nil)
		return
	}

	// A local delivery already put the message on record through the commit
	// path; only relayed mail needs an archive copy for the sent view.
	if !local && user.TenantID != nil {
		if err := h.sender.FileSent(*user.TenantID, user.Email, req.To, req.Subject, req.Body); err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("failed to file sent copy")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

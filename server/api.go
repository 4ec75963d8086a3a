package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/mozzarellastix/SWE-App/internal/auth"
	"github.com/mozzarellastix/SWE-App/internal/db"
	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

var validate = validator.New()

// APIHandler serves the JSON account and message API.
type APIHandler struct {
	db     *db.Store
	tokens *auth.TokenIssuer
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(database *db.Store, tokens *auth.TokenIssuer) *APIHandler {
	return &APIHandler{
		db:     database,
		tokens: tokens,
	}
}

func (a *APIHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (a *APIHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	a.writeJSON(w, status, protocol.ErrorResponse{Code: code, Message: message})
}

func (a *APIHandler) internalError(w http.ResponseWriter, err error, msg string) {
	log.WithError(err).Error(msg)
	a.writeError(w, http.StatusInternalServerError, protocol.ErrCodeInternal, msg)
}

// HandleRegister creates an account and returns a session token for it.
func (a *APIHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.internalError(w, err, "Failed to hash password")
		return
	}

	user, err := a.db.CreateUser(r.Context(), req.Username, req.Email, hash)
	if errors.Is(err, db.ErrConflict) {
		a.writeError(w, http.StatusConflict, protocol.ErrCodeConflict, "Username already taken")
		return
	}
	if err != nil {
		a.internalError(w, err, "Failed to create user")
		return
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		a.internalError(w, err, "Failed to issue token")
		return
	}
	log.WithField("user_id", user.ID).Info("User registered")
	a.writeJSON(w, http.StatusCreated, protocol.AuthResponse{User: *user, Token: token})
}

// HandleLogin checks a username and password and returns a session token.
func (a *APIHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, err.Error())
		return
	}

	// The same response for unknown users and wrong passwords.
	user, err := a.db.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, db.ErrNotFound) {
		a.writeError(w, http.StatusUnauthorized, protocol.ErrCodeUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		a.internalError(w, err, "Failed to look up user")
		return
	}
	if ok, err := auth.ComparePassword(req.Password, user.PasswordHash); err != nil || !ok {
		a.writeError(w, http.StatusUnauthorized, protocol.ErrCodeUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		a.internalError(w, err, "Failed to issue token")
		return
	}
	a.writeJSON(w, http.StatusOK, protocol.AuthResponse{User: *user, Token: token})
}

// HandleMe returns the authenticated user.
func (a *APIHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, auth.UserFromContext(r.Context()))
}

// HandleConversations lists the caller's conversations with unread counts.
func (a *APIHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	conversations, err := a.db.ListConversations(r.Context(), user.ID)
	if err != nil {
		a.internalError(w, err, "Failed to list conversations")
		return
	}
	a.writeJSON(w, http.StatusOK, conversations)
}

// HandleHistory returns the messages exchanged with one counterpart, oldest
// first. "before" pages towards older messages.
func (a *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	counterpartID, ok := a.pathUserID(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, "Invalid before")
			return
		}
		before = n
	}

	// Fetch one extra to determine if there are more messages
	messages, err := a.db.GetConversation(r.Context(), user.ID, counterpartID, limit+1, before)
	if errors.Is(err, db.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, protocol.ErrCodeNotFound, "Message not found")
		return
	}
	if err != nil {
		a.internalError(w, err, "Failed to get messages")
		return
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[1:] // Drop the oldest
	}

	a.writeJSON(w, http.StatusOK, protocol.HistoryResponse{
		CounterpartID: counterpartID,
		Messages:      messages,
		HasMore:       hasMore,
	})
}

// HandleMarkRead marks every message the counterpart sent to the caller as read.
func (a *APIHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	counterpartID, ok := a.pathUserID(w, r)
	if !ok {
		return
	}

	n, err := a.db.MarkRead(r.Context(), user.ID, counterpartID)
	if err != nil {
		a.internalError(w, err, "Failed to mark messages read")
		return
	}
	a.writeJSON(w, http.StatusOK, protocol.ReadResponse{Marked: n})
}

func (a *APIHandler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, protocol.ErrCodeInvalid, "Invalid user id")
		return 0, false
	}
	return id, true
}

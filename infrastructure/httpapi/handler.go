// Package httpapi exposes the account endpoints that sit in front of the
// websocket entry point: register and login both answer with a session token.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "chat-relay/errors"
	"chat-relay/services"
)

type Handler struct {
	log  *slog.Logger
	auth services.IAuthService
}

func NewHandler(log *slog.Logger, auth services.IAuthService) *Handler {
	return &Handler{log: log, auth: auth}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.auth.Register(req.Username, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			status = http.StatusConflict
		}
		h.writeError(w, status, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, apperrors.ErrInvalidCredentials)
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, apperrors.ErrValidationFailure)
		return req, false
	}
	return req, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Code: apperrors.CodeOf(err), Reason: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

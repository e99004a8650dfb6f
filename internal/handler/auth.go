package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/validation"
)

const maxCodeAttempts = 5

// CodeSender delivers a sign-in code to an email address.
type CodeSender interface {
	SendLoginCode(ctx context.Context, toEmail, code string) error
}

type AuthHandler struct {
	userStore  *store.UserStore
	loginCodes *store.LoginCodeStore
	sender     CodeSender
	issuer     *auth.Issuer
	validator  *validation.Validator
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	lcs *store.LoginCodeStore,
	sender CodeSender,
	issuer *auth.Issuer,
	v *validation.Validator,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:  us,
		loginCodes: lcs,
		sender:     sender,
		issuer:     issuer,
		validator:  v,
		logger:     logger,
	}
}

type codeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type tokenRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
	Name  string `json:"name" validate:"max=100"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// RequestCode emails a single-use sign-in code. The response is the same
// whether or not the address belongs to a user.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	code, lc, err := h.loginCodes.Create(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("create login code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send code")
		return
	}

	if err := h.sender.SendLoginCode(r.Context(), lc.Email, code); err != nil {
		h.logger.Error("send login code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send code")
		return
	}

	h.logger.Info("login code sent", "code_id", lc.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code sent"})
}

// validateCode checks code against the latest pending code for email and
// consumes it on success. It returns a client-facing message on failure.
func (h *AuthHandler) validateCode(ctx context.Context, email, code string) string {
	latest, err := h.loginCodes.GetLatestByEmail(ctx, email)
	if err != nil {
		h.logger.Error("get login code", "error", err)
		return "failed to verify code"
	}
	if latest == nil {
		return "code expired or not found, request a new one"
	}

	if latest.Attempts >= maxCodeAttempts {
		h.loginCodes.MarkUsed(ctx, latest.ID)
		return "too many incorrect attempts, request a new code"
	}

	if !h.loginCodes.Matches(latest, code) {
		attempts, err := h.loginCodes.IncrementAttempts(ctx, latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.loginCodes.MarkUsed(ctx, latest.ID)
			return "too many incorrect attempts, request a new code"
		}
		return "incorrect code"
	}

	ok, err := h.loginCodes.MarkUsed(ctx, latest.ID)
	if err != nil {
		h.logger.Error("mark login code used", "error", err)
		return "failed to verify code"
	}
	if !ok {
		return "code expired or not found, request a new one"
	}
	return ""
}

// Token exchanges an emailed code for a bearer token, registering the
// caller on first sign-in.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if msg := h.validateCode(r.Context(), req.Email, req.Code); msg != "" {
		h.logger.Warn("login code rejected", "reason", msg)
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(req.Email, "@")
	}

	user, err := h.userStore.GetOrCreate(r.Context(), req.Email, name)
	if err != nil {
		h.logger.Error("get or create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	token, expires, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	h.logger.Info("token issued", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires, User: user})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

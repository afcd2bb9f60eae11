package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"encoding/json"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharevault/backend/internal/logging"
	"github.com/sharevault/backend/internal/middleware"
	"github.com/sharevault/backend/internal/models"
	"github.com/sharevault/backend/internal/repositories"
)

// AuthHandler implements user registration and login endpoints.
type AuthHandler struct {
	Users       UserStore
	Credentials CredentialIssuer
	TokenTTL    time.Duration
	NowFunc     func() time.Time
}

// Register handles POST /user/register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Credentials == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasCredentials", h.Credentials != nil)
		failJSON(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" {
		logger.Warn("register missing credentials", "email", req.Email)
		failJSON(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("register invalid email", "email", req.Email, "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if len(req.Password) < 8 {
		logger.Warn("register password too short", "email", req.Email)
		failJSON(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		failJSON(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("register conflict", "email", req.Email)
			failJSON(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("register failed to create user", "error", err, "email", req.Email)
		failJSON(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.issueCredential(w, r, user, http.StatusCreated)
}

// Login handles POST /user/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Credentials == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasCredentials", h.Credentials != nil)
		failJSON(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		failJSON(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		failJSON(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "email", req.Email, "error", err)
		failJSON(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		failJSON(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueCredential(w, r, user, http.StatusOK)
}

// Logout handles POST /user/logout requests by clearing the credential cookie.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CredentialCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true})
}

func (h AuthHandler) issueCredential(w http.ResponseWriter, r *http.Request, user models.User, status int) {
	ctx := r.Context()

	token, err := h.Credentials.Issue(user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue credential", "error", err, "userId", user.ID)
		failJSON(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	maxAge := int(h.TokenTTL / time.Second)
	if maxAge <= 0 {
		maxAge = int(24 * time.Hour / time.Second)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CredentialCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(ctx, w, status, authResponse{
		Success: true,
		Token:   token,
		User:    userPayload{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type authResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    userPayload `json:"user"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

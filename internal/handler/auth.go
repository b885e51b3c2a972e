package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ValeZask/EduDiaryGit/internal/auth"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
	"github.com/ValeZask/EduDiaryGit/internal/storage"
)

type AuthHandler struct {
	userRepo  *repository.UserRepository
	tokens    storage.TokenStore
	mgr       *auth.Manager
	rateLimit int
	rateWin   time.Duration
}

func NewAuthHandler(userRepo *repository.UserRepository, tokens storage.TokenStore, mgr *auth.Manager, rateLimit int, rateWin time.Duration) *AuthHandler {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if rateWin <= 0 {
		rateWin = 5 * time.Minute
	}
	return &AuthHandler{userRepo: userRepo, tokens: tokens, mgr: mgr, rateLimit: rateLimit, rateWin: rateWin}
}

type RegisterRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string           `json:"token"`
	User  model.UserPublic `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be teacher, parent or student")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Errorf("register: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		logger.Errorf("register: create user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, _, err := h.mgr.Issue(u)
	if err != nil {
		logger.Errorf("register: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, TokenResponse{Token: token, User: u.ToPublic()})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	attempts, err := h.tokens.IncrLoginAttempt(r.Context(), req.Email, h.rateWin)
	if err != nil {
		logger.Errorf("login: rate limit: %v", err)
	} else if attempts > h.rateLimit {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	u, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Не раскрываем, существует ли email.
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, _, err := h.mgr.Issue(u)
	if err != nil {
		logger.Errorf("login: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, User: u.ToPublic()})
}

// Logout отзывает текущий токен до конца его срока действия.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get("Authorization")
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	claims, err := h.mgr.Verify(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.tokens.RevokeToken(r.Context(), claims.ID, ttl); err != nil {
		logger.Errorf("logout: revoke token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает профиль текущего пользователя.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

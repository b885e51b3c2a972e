package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
)

type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Search ищет пользователей по имени или email (?q=, ?role=, ?limit=).
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	users, err := h.userRepo.Search(r.Context(), r.URL.Query().Get("q"), role, queryInt(r, "limit", 50))
	if err != nil {
		logger.Errorf("user search: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]model.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	u, err := h.userRepo.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("user get: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

// Profile — анкета текущего пользователя; отсутствие анкеты отдаёт пустую.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	p, err := h.userRepo.GetProfile(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusOK, model.Profile{UserID: userID})
		return
	}
	if err != nil {
		logger.Errorf("user profile: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p.UserID = middleware.GetUserID(r.Context())
	if err := h.userRepo.UpsertProfile(r.Context(), &p); err != nil {
		logger.Errorf("user update profile: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Children — дети текущего родителя.
func (h *UserHandler) Children(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.Children(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		logger.Errorf("user children: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]model.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	writeJSON(w, http.StatusOK, out)
}

type LinkChildRequest struct {
	StudentID string `json:"student_id"`
}

// LinkChild привязывает ученика к текущему родителю.
func (h *UserHandler) LinkChild(w http.ResponseWriter, r *http.Request) {
	var req LinkChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	student, err := h.userRepo.GetByID(r.Context(), req.StudentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	if student.Role != model.RoleStudent {
		writeError(w, http.StatusBadRequest, "user is not a student")
		return
	}
	if err := h.userRepo.LinkParent(r.Context(), middleware.GetUserID(r.Context()), req.StudentID); err != nil {
		logger.Errorf("user link child: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
	"github.com/ValeZask/EduDiaryGit/internal/school"
)

type AchievementHandler struct {
	achRepo    *repository.AchievementRepository
	userRepo   *repository.UserRepository
	visibility *school.Visibility
}

func NewAchievementHandler(achRepo *repository.AchievementRepository, userRepo *repository.UserRepository, visibility *school.Visibility) *AchievementHandler {
	return &AchievementHandler{achRepo: achRepo, userRepo: userRepo, visibility: visibility}
}

// ForStudent — достижения ученика; видимость как у оценок.
func (h *AchievementHandler) ForStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	viewer, err := h.userRepo.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	allowed, err := h.visibility.CanViewStudent(r.Context(), viewer, studentID)
	if err != nil {
		logger.Errorf("achievement: visibility: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "no access to this student")
		return
	}
	items, err := h.achRepo.ForStudent(r.Context(), studentID)
	if err != nil {
		logger.Errorf("achievement list: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type CreateAchievementRequest struct {
	StudentID   string `json:"student_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Place       string `json:"place"`
}

// Create добавляет достижение ученику (только учитель).
func (h *AchievementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "student_id and title are required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	cat, err := h.achRepo.GetOrCreateCategory(r.Context(), strings.TrimSpace(req.Category))
	if err != nil {
		logger.Errorf("achievement category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	place, err := h.achRepo.GetOrCreatePlace(r.Context(), strings.TrimSpace(req.Place))
	if err != nil {
		logger.Errorf("achievement place: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	a := &model.Achievement{
		ID:           uuid.New().String(),
		StudentID:    req.StudentID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Date:         date,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		PlaceID:      place.ID,
		PlaceName:    place.Name,
	}
	if err := h.achRepo.Create(r.Context(), a); err != nil {
		logger.Errorf("achievement create: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
	"github.com/ValeZask/EduDiaryGit/internal/school"
)

// DiaryHandler — расписание и оценки. Доступ к данным ученика проверяется
// через school.Visibility.
type DiaryHandler struct {
	schoolRepo *repository.SchoolRepository
	userRepo   *repository.UserRepository
	visibility *school.Visibility
}

func NewDiaryHandler(schoolRepo *repository.SchoolRepository, userRepo *repository.UserRepository, visibility *school.Visibility) *DiaryHandler {
	return &DiaryHandler{schoolRepo: schoolRepo, userRepo: userRepo, visibility: visibility}
}

func (h *DiaryHandler) viewer(r *http.Request) (*model.User, error) {
	return h.userRepo.GetByID(r.Context(), middleware.GetUserID(r.Context()))
}

// requireStudentAccess — общая проверка "может ли текущий пользователь видеть ученика".
func (h *DiaryHandler) requireStudentAccess(w http.ResponseWriter, r *http.Request, studentID string) bool {
	viewer, err := h.viewer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	allowed, err := h.visibility.CanViewStudent(r.Context(), viewer, studentID)
	if err != nil {
		logger.Errorf("diary: visibility check: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "no access to this student")
		return false
	}
	return true
}

// Schedule отдаёт расписание класса; ?day=1..7 ограничивает одним днём.
func (h *DiaryHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	day := queryInt(r, "day", 0)
	if day < 0 || day > 7 {
		writeError(w, http.StatusBadRequest, "day must be between 1 and 7")
		return
	}
	items, err := h.schoolRepo.ScheduleForClass(r.Context(), classID, day)
	if err != nil {
		logger.Errorf("diary: schedule class=%s: %v", classID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// MySchedule — расписание класса текущего ученика.
func (h *DiaryHandler) MySchedule(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	class, err := h.schoolRepo.ClassOfStudent(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "class not found for this student")
			return
		}
		logger.Errorf("diary: class of student %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items, err := h.schoolRepo.ScheduleForClass(r.Context(), class.ID, queryInt(r, "day", 0))
	if err != nil {
		logger.Errorf("diary: schedule class=%s: %v", class.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Grades — оценки ученика за период (?from=, ?to= в формате 2006-01-02,
// ?subject_id=). Видимость: ученик — только свои, родитель — детей, учитель — всех.
func (h *DiaryHandler) Grades(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if !h.requireStudentAccess(w, r, studentID) {
		return
	}

	from, to, ok := parseDateRange(w, r)
	if !ok {
		return
	}
	grades, err := h.schoolRepo.GradesOfStudent(r.Context(), studentID, r.URL.Query().Get("subject_id"), from, to)
	if err != nil {
		logger.Errorf("diary: grades student=%s: %v", studentID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	avg, err := h.schoolRepo.AverageGrade(r.Context(), studentID, r.URL.Query().Get("subject_id"))
	if err != nil {
		logger.Errorf("diary: average student=%s: %v", studentID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grades": grades, "average": avg})
}

type CreateGradeRequest struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Value     int    `json:"value"`
	Date      string `json:"date"`
	Comment   string `json:"comment"`
}

// CreateGrade выставляет оценку (только учитель, роут за RequireRole).
// Значение 2..5; одна оценка на (ученик, предмет, дата).
func (h *DiaryHandler) CreateGrade(w http.ResponseWriter, r *http.Request) {
	var req CreateGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Value < 2 || req.Value > 5 {
		writeError(w, http.StatusBadRequest, "value must be between 2 and 5")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	g := &model.Grade{
		ID:        uuid.New().String(),
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Value:     req.Value,
		Date:      date,
		Comment:   req.Comment,
	}
	if err := h.schoolRepo.CreateGrade(r.Context(), g); err != nil {
		if errors.Is(err, repository.ErrGradeExists) {
			writeError(w, http.StatusConflict, "grade already exists for this date")
			return
		}
		logger.Errorf("diary: create grade: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func parseDateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now()
	from := now.AddDate(0, -3, 0)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return from, to, false
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return from, to, false
		}
		to = t
	}
	return from, to, true
}

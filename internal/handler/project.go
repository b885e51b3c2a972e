package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
)

type ProjectHandler struct {
	projRepo *repository.ProjectRepository
}

func NewProjectHandler(projRepo *repository.ProjectRepository) *ProjectHandler {
	return &ProjectHandler{projRepo: projRepo}
}

// List — проекты (?status=active|completed|archived).
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.ProjectStatus(r.URL.Query().Get("status"))
	items, err := h.projRepo.List(r.Context(), status)
	if err != nil {
		logger.Errorf("project list: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.projRepo.GetByID(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		logger.Errorf("project get: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	members, err := h.projRepo.Members(r.Context(), p.ID)
	if err != nil {
		logger.Errorf("project members: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tasks, err := h.projRepo.Tasks(r.Context(), p.ID)
	if err != nil {
		logger.Errorf("project tasks: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p, "members": members, "tasks": tasks})
}

type CreateProjectRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Priority    model.ProjectPriority `json:"priority"`
	MemberIDs   []string              `json:"member_ids"`
	LeadID      string                `json:"lead_id"`
}

// Create заводит проект: код PN0000001 выдаётся из sequence, участники
// добавляются сразу, лид получает роль lead.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		end = &t
	}
	priority := req.Priority
	if priority == "" {
		priority = model.ProjectPriorityMedium
	}

	code, err := h.projRepo.NextProjectCode(r.Context())
	if err != nil {
		logger.Errorf("project code: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	p := &model.Project{
		ID:          uuid.New().String(),
		ProjectCode: code,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Status:      model.ProjectStatusActive,
		Priority:    priority,
	}
	if err := h.projRepo.Create(r.Context(), p); err != nil {
		logger.Errorf("project create: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	for _, id := range req.MemberIDs {
		role := model.ProjectMemberMember
		if id == req.LeadID {
			role = model.ProjectMemberLead
		}
		m := &model.ProjectMember{ProjectID: p.ID, StudentID: id, Role: role}
		if err := h.projRepo.AddMember(r.Context(), m); err != nil {
			logger.Errorf("project add member: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusCreated, p)
}

type UpdateProjectStatusRequest struct {
	Status model.ProjectStatus `json:"status"`
}

func (h *ProjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Status {
	case model.ProjectStatusActive, model.ProjectStatusCompleted, model.ProjectStatusArchived:
	default:
		writeError(w, http.StatusBadRequest, "unknown project status")
		return
	}
	if err := h.projRepo.SetStatus(r.Context(), chi.URLParam(r, "projectID"), req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		logger.Errorf("project status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	Deadline    string `json:"deadline"`
}

func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	projectID := chi.URLParam(r, "projectID")
	if _, err := h.projRepo.GetByID(r.Context(), projectID); err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	t := &model.ProjectTask{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(req.Title),
		Status:    model.TaskStatusNew,
	}
	t.Description = req.Description
	if req.AssignedTo != "" {
		t.AssignedTo = &req.AssignedTo
	}
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be YYYY-MM-DD")
			return
		}
		t.Deadline = &d
	}
	if err := h.projRepo.CreateTask(r.Context(), t); err != nil {
		logger.Errorf("project create task: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type UpdateTaskStatusRequest struct {
	Status model.TaskStatus `json:"status"`
}

func (h *ProjectHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Status {
	case model.TaskStatusNew, model.TaskStatusInProgress, model.TaskStatusDone:
	default:
		writeError(w, http.StatusBadRequest, "unknown task status")
		return
	}
	if err := h.projRepo.SetTaskStatus(r.Context(), chi.URLParam(r, "taskID"), req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		logger.Errorf("project task status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events — ближайшие мероприятия (?limit=).
func (h *ProjectHandler) Events(w http.ResponseWriter, r *http.Request) {
	items, err := h.projRepo.UpcomingEvents(r.Context(), time.Now().Truncate(24*time.Hour), queryInt(r, "limit", 20))
	if err != nil {
		logger.Errorf("project events: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type CreateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
}

func (h *ProjectHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		writeError(w, http.StatusBadRequest, "time must be HH:MM")
		return
	}
	organizerID := middleware.GetUserID(r.Context())
	e := &model.Event{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Date:        date,
		Time:        req.Time,
		Location:    req.Location,
		OrganizerID: &organizerID,
	}
	if err := h.projRepo.CreateEvent(r.Context(), e); err != nil {
		logger.Errorf("project create event: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

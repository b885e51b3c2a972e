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

type NewsHandler struct {
	newsRepo *repository.NewsRepository
}

func NewNewsHandler(newsRepo *repository.NewsRepository) *NewsHandler {
	return &NewsHandler{newsRepo: newsRepo}
}

// List — лента новостей (?category_id=, ?limit=, ?offset=).
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.newsRepo.List(r.Context(), r.URL.Query().Get("category_id"),
		queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		logger.Errorf("news list: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NewsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	n, err := h.newsRepo.GetByID(r.Context(), chi.URLParam(r, "newsID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "news not found")
			return
		}
		logger.Errorf("news get: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NewsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.newsRepo.Categories(r.Context())
	if err != nil {
		logger.Errorf("news categories: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type CreateNewsRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
	Category string `json:"category"`
}

// Create публикует новость (только учитель). Категория ищется по имени без
// учёта регистра, при отсутствии создаётся.
func (h *NewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	n := &model.News{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		AuthorID:    middleware.GetUserID(r.Context()),
		PublishedAt: time.Now().UTC(),
	}
	if name := strings.TrimSpace(req.Category); name != "" {
		cat, err := h.newsRepo.GetOrCreateCategory(r.Context(), name)
		if err != nil {
			logger.Errorf("news create category: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		n.CategoryID = &cat.ID
		n.CategoryName = cat.Name
	}
	if err := h.newsRepo.Create(r.Context(), n); err != nil {
		logger.Errorf("news create: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	newsID := chi.URLParam(r, "newsID")
	n, err := h.newsRepo.GetByID(r.Context(), newsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "news not found")
			return
		}
		logger.Errorf("news delete get: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if n.AuthorID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, "can only delete own news")
		return
	}
	if err := h.newsRepo.Delete(r.Context(), newsID); err != nil {
		logger.Errorf("news delete: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

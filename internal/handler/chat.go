package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type CreateChatRequest struct {
	Title      string   `json:"title"`
	InviteeIDs []string `json:"invitee_ids"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids"`
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	c, err := h.svc.CreateChat(r.Context(), middleware.GetUserID(r.Context()), req.InviteeIDs, req.Title)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListChats отдаёт чаты пользователя; ?q= фильтрует по заголовку.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query().Get("q")

	var err error
	var chats any
	if q != "" {
		chats, err = h.svc.SearchChats(r.Context(), userID, q)
	} else {
		chats, err = h.svc.ListChats(r.Context(), userID)
	}
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// ListMessages отдаёт сообщения чата от новых к старым.
// Параметры: ?q= поиск по содержимому, ?limit=, ?offset=.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	msgs, err := h.svc.ListMessages(r.Context(), chatID, middleware.GetUserID(r.Context()),
		r.URL.Query().Get("q"), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := h.svc.SendMessage(r.Context(), chi.URLParam(r, "chatID"), middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// MarkAllRead отмечает весь чат прочитанным; повторный вызов — no-op.
func (h *ChatHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	err := h.svc.MarkAllRead(r.Context(), chi.URLParam(r, "chatID"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), chi.URLParam(r, "chatID"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (h *ChatHandler) Participants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Participants(r.Context(), chi.URLParam(r, "chatID"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ChatHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	var req AddParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	added, err := h.svc.AddParticipants(r.Context(), chi.URLParam(r, "chatID"), middleware.GetUserID(r.Context()), req.UserIDs)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

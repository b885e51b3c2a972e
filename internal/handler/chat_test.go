package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/chat/chattest"
	"github.com/ValeZask/EduDiaryGit/internal/handler"
	"github.com/ValeZask/EduDiaryGit/internal/middleware"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

type silentNotifier struct{}

func (silentNotifier) ChatCreated(*model.Chat, []string)                     {}
func (silentNotifier) MessageSent(*model.Chat, *model.ChatMessage, []string) {}
func (silentNotifier) MessagesRead(string, string)                           {}
func (silentNotifier) MembersAdded(string, []model.ChatParticipant)          {}

// asUser подставляет аутентифицированного пользователя, как это делает JWTAuth.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newChatRouter(userID string) (*chi.Mux, *chat.Service) {
	svc := chat.NewService(chattest.NewStore(), silentNotifier{})
	h := handler.NewChatHandler(svc)

	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Post("/api/chats", h.CreateChat)
	r.Get("/api/chats", h.ListChats)
	r.Get("/api/chats/{chatID}/messages", h.ListMessages)
	r.Post("/api/chats/{chatID}/messages", h.SendMessage)
	r.Post("/api/chats/{chatID}/read", h.MarkAllRead)
	r.Get("/api/chats/{chatID}/unread", h.UnreadCount)
	r.Get("/api/chats/{chatID}/participants", h.Participants)
	r.Post("/api/chats/{chatID}/participants", h.AddParticipants)
	return r, svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatHandlerCreateAndSend(t *testing.T) {
	router, _ := newChatRouter("alice")

	rec := doJSON(t, router, http.MethodPost, "/api/chats", handler.CreateChatRequest{
		Title:      "7Б — объявления",
		InviteeIDs: []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c model.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, model.ChatTypePrivate, c.ChatType)
	assert.Equal(t, "alice", c.CreatedBy)

	rec = doJSON(t, router, http.MethodPost, "/api/chats/"+c.ID+"/messages", handler.SendMessageRequest{Content: "привет"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var m model.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "alice", m.SenderID)
	assert.Equal(t, "привет", m.Content)

	rec = doJSON(t, router, http.MethodGet, "/api/chats/"+c.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []model.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
}

func TestChatHandlerCreateValidation(t *testing.T) {
	router, _ := newChatRouter("alice")

	rec := doJSON(t, router, http.MethodPost, "/api/chats", handler.CreateChatRequest{Title: "пусто"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/chats", handler.CreateChatRequest{
		Title:      "сам себе",
		InviteeIDs: []string{"alice"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerErrorMapping(t *testing.T) {
	router, svc := newChatRouter("alice")

	// Чата нет — 404.
	rec := doJSON(t, router, http.MethodPost, "/api/chats/missing/messages", handler.SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, err := svc.CreateChat(context.Background(), "bob", []string{"carol"}, "чужой чат")
	require.NoError(t, err)

	// alice не участник — 403.
	rec = doJSON(t, router, http.MethodPost, "/api/chats/"+c.ID+"/messages", handler.SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/chats/"+c.ID+"/participants", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatHandlerReadFlow(t *testing.T) {
	aliceRouter, svc := newChatRouter("alice")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "bob", []string{"alice"}, "диалог")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "bob", "первое")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "bob", "второе")
	require.NoError(t, err)

	rec := doJSON(t, aliceRouter, http.MethodGet, "/api/chats/"+c.ID+"/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 2, counts["unread_count"])

	rec = doJSON(t, aliceRouter, http.MethodPost, "/api/chats/"+c.ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, aliceRouter, http.MethodGet, "/api/chats/"+c.ID+"/unread", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Zero(t, counts["unread_count"])
}

func TestChatHandlerAddParticipants(t *testing.T) {
	router, svc := newChatRouter("alice")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "группа")
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/chats/"+c.ID+"/participants",
		handler.AddParticipantsRequest{UserIDs: []string{"carol"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var added []model.ChatParticipant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added, 1)
	assert.Equal(t, "carol", added[0].UserID)

	// Дубль отклоняется на весь запрос.
	rec = doJSON(t, router, http.MethodPost, "/api/chats/"+c.ID+"/participants",
		handler.AddParticipantsRequest{UserIDs: []string{"dave", "bob"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Package handler — HTTP-слой: разбор запросов, коды ответов, JSON.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// writeChatError переводит ошибки ядра переписки в HTTP-коды: "чата нет" —
// 404, "нельзя" — 403, плохой ввод — 400, остальное — 500.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, chat.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not a participant of this chat")
	case errors.Is(err, chat.ErrNotAdmin):
		writeError(w, http.StatusForbidden, "requires chat admin role")
	case chat.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("chat handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

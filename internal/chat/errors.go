package chat

import (
	"errors"
	"fmt"
)

// Ошибки разрешений и "не найдено" различаются намеренно: вызывающий должен
// отличать "чата нет" от "чат есть, но вам нельзя".
var (
	// ErrNotFound возвращают реализации Store, когда записи нет.
	ErrNotFound = errors.New("chat: record not found")

	// ErrChatNotFound — чат с таким id не существует.
	ErrChatNotFound = errors.New("chat not found")

	// ErrNotParticipant — у пользователя нет записи участника в этом чате.
	ErrNotParticipant = errors.New("not a participant of this chat")

	// ErrNotAdmin — операция требует роли админа чата.
	ErrNotAdmin = errors.New("requires chat admin role")

	// ErrDuplicateParticipant возвращают реализации Store при нарушении
	// уникальности (chat_id, user_id).
	ErrDuplicateParticipant = errors.New("chat: participant already exists")
)

// ValidationError — некорректный или конфликтующий ввод: пустой список
// приглашённых, приглашение самого себя, дубликат членства. UserID заполняется,
// когда ошибку вызвал конкретный пользователь из запроса.
type ValidationError struct {
	Field  string
	UserID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("validation: %s (user %s)", e.Reason, e.UserID)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
	}
	return "validation: " + e.Reason
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

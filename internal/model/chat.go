package model

import "time"

// ChatType выводится из числа участников, напрямую не задаётся:
// ровно два участника — private, иначе group.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// DeriveChatType возвращает тип чата по числу участников.
func DeriveChatType(participants int) ChatType {
	if participants == 2 {
		return ChatTypePrivate
	}
	return ChatTypeGroup
}

// ParticipantRole — роль участника внутри чата. Админ чата управляет составом
// участников; это не то же самое, что роль аккаунта (teacher/parent/student).
type ParticipantRole string

const (
	ParticipantRoleAdmin  ParticipantRole = "admin"
	ParticipantRoleMember ParticipantRole = "member"
)

type Chat struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	ChatType      ChatType   `json:"type"`
	AvatarURL     string     `json:"avatar_url"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ChatMessage неизменяемо после создания; меняется только множество прочитавших.
type ChatMessage struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	ReadBy    []string    `json:"read_by,omitempty"`
	Sender    *UserPublic `json:"sender,omitempty"`
}

// ChatParticipant — запись членства (user, chat), уникальная на пару.
// UnreadCount хранится денормализованно и двигается движком read-state;
// LastReadMessageID — слабая ссылка, при удалении сообщения обнуляется в БД.
type ChatParticipant struct {
	ID                string          `json:"id"`
	ChatID            string          `json:"chat_id"`
	UserID            string          `json:"user_id"`
	Role              ParticipantRole `json:"role"`
	UnreadCount       int             `json:"unread_count"`
	LastReadMessageID *string         `json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	User              *UserPublic     `json:"user,omitempty"`
}

// ChatWithState — чат, обогащённый последним сообщением и счётчиком
// непрочитанного для конкретного пользователя (для списка чатов).
type ChatWithState struct {
	Chat        Chat         `json:"chat"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}

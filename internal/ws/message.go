package ws

import "github.com/ValeZask/EduDiaryGit/internal/model"

type EventType string

const (
	EventNewMessage   EventType = "new_message"
	EventMessagesRead EventType = "messages_read"
	EventTyping       EventType = "typing"
	EventChatCreated  EventType = "chat_created"
	EventMemberAdded  EventType = "member_added"
	EventError        EventType = "error"
)

// IncomingMessage — то, что клиент шлёт серверу.
type IncomingMessage struct {
	Type    EventType `json:"type"`
	ChatID  string    `json:"chat_id,omitempty"`
	Content string    `json:"content,omitempty"`
}

// OutgoingMessage — то, что сервер шлёт клиенту. Payload — типизированные
// структуры, не map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessagePayload рассылается участникам чата при новом сообщении.
type NewMessagePayload struct {
	Chat    *model.Chat        `json:"chat"`
	Message *model.ChatMessage `json:"message"`
}

// MessagesReadPayload рассылается, когда участник прочитал чат.
type MessagesReadPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// TypingPayload рассылается остальным участникам, когда пользователь печатает.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ChatCreatedPayload получают все участники нового чата.
type ChatCreatedPayload struct {
	Chat *model.Chat `json:"chat"`
}

// MemberAddedPayload рассылается при добавлении участника в чат.
type MemberAddedPayload struct {
	ChatID string                `json:"chat_id"`
	Member model.ChatParticipant `json:"member"`
}

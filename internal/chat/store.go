package chat

import (
	"context"
	"time"

	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// Store — персистентность чатов, сообщений и участников. Сервис вызывает её
// явно на входе/выходе каждой операции; никакого автосохранения при изменении
// полей нет. Реализации: repository.ChatStore (Postgres) и in-memory в тестах.
//
// Методы, возвращающие одну запись, отдают ErrNotFound при её отсутствии.
type Store interface {
	// InTx выполняет fn в одной транзакции; Store, переданный в fn,
	// привязан к этой транзакции. Вложенные InTx не поддерживаются.
	InTx(ctx context.Context, fn func(Store) error) error

	CreateChat(ctx context.Context, c *model.Chat) error
	ChatByID(ctx context.Context, chatID string) (*model.Chat, error)
	SetChatType(ctx context.Context, chatID string, t model.ChatType) error
	SetLastMessageAt(ctx context.Context, chatID string, at time.Time) error
	ChatsForUser(ctx context.Context, userID string) ([]model.Chat, error)
	SearchChatsForUser(ctx context.Context, userID, titleQuery string) ([]model.Chat, error)

	AddParticipant(ctx context.Context, p *model.ChatParticipant) error
	Participant(ctx context.Context, chatID, userID string) (*model.ChatParticipant, error)
	Participants(ctx context.Context, chatID string) ([]model.ChatParticipant, error)
	ParticipantCount(ctx context.Context, chatID string) (int, error)

	InsertMessage(ctx context.Context, m *model.ChatMessage) error
	// Messages возвращает сообщения чата от новых к старым; searchText —
	// регистронезависимый фильтр по подстроке содержимого ("" — без фильтра).
	Messages(ctx context.Context, chatID, searchText string, limit, offset int) ([]model.ChatMessage, error)
	LastMessage(ctx context.Context, chatID string) (*model.ChatMessage, error)
	// UnreadMessages — сообщения чата без отметки прочтения от userID, от новых к старым.
	UnreadMessages(ctx context.Context, chatID, userID string) ([]model.ChatMessage, error)
	MarkRead(ctx context.Context, messageIDs []string, userID string, at time.Time) error
	// IncrementUnread — атомарный батч: +1 всем участникам чата, кроме exceptUserID.
	IncrementUnread(ctx context.Context, chatID, exceptUserID string) error
	// SetReadState выставляет last_read_message_id и обнуляет unread_count участника.
	SetReadState(ctx context.Context, chatID, userID string, lastReadMessageID *string) error
}

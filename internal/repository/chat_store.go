package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// ChatStore — Postgres-реализация chat.Store. Вне транзакции работает через
// пул; InTx выдаёт копию, привязанную к pgx.Tx.
type ChatStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool, db: pool}
}

func (s *ChatStore) InTx(ctx context.Context, fn func(chat.Store) error) error {
	if s.pool == nil {
		return errors.New("chatStore.InTx: nested transactions are not supported")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chatStore.InTx begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&ChatStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chatStore.InTx commit: %w", err)
	}
	return nil
}

func (s *ChatStore) CreateChat(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chatStore.CreateChat", time.Now())()
	_, err := s.db.Exec(ctx,
		`INSERT INTO chats (id, title, chat_type, avatar_url, last_message_at, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Title, c.ChatType, c.AvatarURL, c.LastMessageAt, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatStore.CreateChat: %w", err)
	}
	return nil
}

const chatCols = `id, title, chat_type, avatar_url, last_message_at, created_by, created_at`

func scanChat(s interface{ Scan(dest ...any) error }, c *model.Chat) error {
	return s.Scan(&c.ID, &c.Title, &c.ChatType, &c.AvatarURL, &c.LastMessageAt, &c.CreatedBy, &c.CreatedAt)
}

func (s *ChatStore) ChatByID(ctx context.Context, chatID string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chatStore.ChatByID", time.Now())()
	c := &model.Chat{}
	row := s.db.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE id = $1`, chatID)
	if err := scanChat(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, fmt.Errorf("chatStore.ChatByID: %w", err)
	}
	return c, nil
}

func (s *ChatStore) SetChatType(ctx context.Context, chatID string, t model.ChatType) error {
	defer logger.DeferLogDuration("chatStore.SetChatType", time.Now())()
	_, err := s.db.Exec(ctx, `UPDATE chats SET chat_type = $1 WHERE id = $2`, t, chatID)
	if err != nil {
		return fmt.Errorf("chatStore.SetChatType: %w", err)
	}
	return nil
}

func (s *ChatStore) SetLastMessageAt(ctx context.Context, chatID string, at time.Time) error {
	defer logger.DeferLogDuration("chatStore.SetLastMessageAt", time.Now())()
	_, err := s.db.Exec(ctx, `UPDATE chats SET last_message_at = $1 WHERE id = $2`, at, chatID)
	if err != nil {
		return fmt.Errorf("chatStore.SetLastMessageAt: %w", err)
	}
	return nil
}

func (s *ChatStore) ChatsForUser(ctx context.Context, userID string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chatStore.ChatsForUser", time.Now())()
	return s.queryChats(ctx,
		`SELECT c.id, c.title, c.chat_type, c.avatar_url, c.last_message_at, c.created_by, c.created_at
		 FROM chats c
		 JOIN chat_participants cp ON cp.chat_id = c.id
		 WHERE cp.user_id = $1
		 ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`, userID)
}

func (s *ChatStore) SearchChatsForUser(ctx context.Context, userID, titleQuery string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chatStore.SearchChatsForUser", time.Now())()
	return s.queryChats(ctx,
		`SELECT c.id, c.title, c.chat_type, c.avatar_url, c.last_message_at, c.created_by, c.created_at
		 FROM chats c
		 JOIN chat_participants cp ON cp.chat_id = c.id
		 WHERE cp.user_id = $1 AND c.title ILIKE '%' || $2 || '%'
		 ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`, userID, titleQuery)
}

func (s *ChatStore) queryChats(ctx context.Context, query string, args ...any) ([]model.Chat, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chatStore.queryChats: %w", err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0, 16)
	for rows.Next() {
		var c model.Chat
		if err := scanChat(rows, &c); err != nil {
			return nil, fmt.Errorf("chatStore.queryChats scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatStore.queryChats rows: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) AddParticipant(ctx context.Context, p *model.ChatParticipant) error {
	defer logger.DeferLogDuration("chatStore.AddParticipant", time.Now())()
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_participants (id, chat_id, user_id, role, unread_count, last_read_message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.ChatID, p.UserID, p.Role, p.UnreadCount, p.LastReadMessageID, p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return chat.ErrDuplicateParticipant
	}
	if err != nil {
		return fmt.Errorf("chatStore.AddParticipant: %w", err)
	}
	return nil
}

func (s *ChatStore) Participant(ctx context.Context, chatID, userID string) (*model.ChatParticipant, error) {
	defer logger.DeferLogDuration("chatStore.Participant", time.Now())()
	p := &model.ChatParticipant{}
	err := s.db.QueryRow(ctx,
		`SELECT id, chat_id, user_id, role, unread_count, last_read_message_id, created_at
		 FROM chat_participants WHERE chat_id = $1 AND user_id = $2`, chatID, userID,
	).Scan(&p.ID, &p.ChatID, &p.UserID, &p.Role, &p.UnreadCount, &p.LastReadMessageID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatStore.Participant: %w", err)
	}
	return p, nil
}

func (s *ChatStore) Participants(ctx context.Context, chatID string) ([]model.ChatParticipant, error) {
	defer logger.DeferLogDuration("chatStore.Participants", time.Now())()
	rows, err := s.db.Query(ctx,
		`SELECT cp.id, cp.chat_id, cp.user_id, cp.role, cp.unread_count, cp.last_read_message_id, cp.created_at,
		        u.id, u.email, u.full_name, u.role, u.avatar_url
		 FROM chat_participants cp
		 JOIN users u ON u.id = cp.user_id
		 WHERE cp.chat_id = $1
		 ORDER BY cp.created_at`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatStore.Participants query: %w", err)
	}
	defer rows.Close()

	out := make([]model.ChatParticipant, 0, 8)
	for rows.Next() {
		var p model.ChatParticipant
		var u model.UserPublic
		if err := rows.Scan(&p.ID, &p.ChatID, &p.UserID, &p.Role, &p.UnreadCount, &p.LastReadMessageID, &p.CreatedAt,
			&u.ID, &u.Email, &u.FullName, &u.Role, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("chatStore.Participants scan: %w", err)
		}
		p.User = &u
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatStore.Participants rows: %w", err)
	}
	return out, nil
}

func (s *ChatStore) ParticipantCount(ctx context.Context, chatID string) (int, error) {
	defer logger.DeferLogDuration("chatStore.ParticipantCount", time.Now())()
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("chatStore.ParticipantCount: %w", err)
	}
	return n, nil
}

func (s *ChatStore) InsertMessage(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("chatStore.InsertMessage", time.Now())()
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_messages (id, chat_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatStore.InsertMessage: %w", err)
	}
	return nil
}

func (s *ChatStore) Messages(ctx context.Context, chatID, searchText string, limit, offset int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("chatStore.Messages", time.Now())()
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at,
		        COALESCE(array_agg(r.user_id::text) FILTER (WHERE r.user_id IS NOT NULL), '{}'),
		        u.id, u.email, u.full_name, u.role, u.avatar_url
		 FROM chat_messages m
		 JOIN users u ON u.id = m.sender_id
		 LEFT JOIN chat_message_reads r ON r.message_id = m.id
		 WHERE m.chat_id = $1 AND ($2 = '' OR m.content ILIKE '%' || $2 || '%')
		 GROUP BY m.id, u.id
		 ORDER BY m.created_at DESC
		 LIMIT $3 OFFSET $4`, chatID, searchText, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("chatStore.Messages query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.ChatMessage, 0, limit)
	for rows.Next() {
		var m model.ChatMessage
		var u model.UserPublic
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt, &m.ReadBy,
			&u.ID, &u.Email, &u.FullName, &u.Role, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("chatStore.Messages scan: %w", err)
		}
		m.Sender = &u
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatStore.Messages rows: %w", err)
	}
	return msgs, nil
}

func (s *ChatStore) LastMessage(ctx context.Context, chatID string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("chatStore.LastMessage", time.Now())()
	m := &model.ChatMessage{}
	err := s.db.QueryRow(ctx,
		`SELECT id, chat_id, sender_id, content, created_at
		 FROM chat_messages WHERE chat_id = $1
		 ORDER BY created_at DESC LIMIT 1`, chatID,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatStore.LastMessage: %w", err)
	}
	return m, nil
}

func (s *ChatStore) UnreadMessages(ctx context.Context, chatID, userID string) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("chatStore.UnreadMessages", time.Now())()
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at
		 FROM chat_messages m
		 WHERE m.chat_id = $1
		   AND NOT EXISTS (SELECT 1 FROM chat_message_reads r WHERE r.message_id = m.id AND r.user_id = $2)
		 ORDER BY m.created_at DESC`, chatID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatStore.UnreadMessages query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.ChatMessage, 0, 16)
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatStore.UnreadMessages scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatStore.UnreadMessages rows: %w", err)
	}
	return msgs, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, messageIDs []string, userID string, at time.Time) error {
	defer logger.DeferLogDuration("chatStore.MarkRead", time.Now())()
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_message_reads (message_id, user_id, read_at)
		 SELECT unnest($1::uuid[]), $2, $3
		 ON CONFLICT DO NOTHING`,
		messageIDs, userID, at,
	)
	if err != nil {
		return fmt.Errorf("chatStore.MarkRead: %w", err)
	}
	return nil
}

func (s *ChatStore) IncrementUnread(ctx context.Context, chatID, exceptUserID string) error {
	defer logger.DeferLogDuration("chatStore.IncrementUnread", time.Now())()
	_, err := s.db.Exec(ctx,
		`UPDATE chat_participants SET unread_count = unread_count + 1
		 WHERE chat_id = $1 AND user_id <> $2`,
		chatID, exceptUserID,
	)
	if err != nil {
		return fmt.Errorf("chatStore.IncrementUnread: %w", err)
	}
	return nil
}

func (s *ChatStore) SetReadState(ctx context.Context, chatID, userID string, lastReadMessageID *string) error {
	defer logger.DeferLogDuration("chatStore.SetReadState", time.Now())()
	tag, err := s.db.Exec(ctx,
		`UPDATE chat_participants SET last_read_message_id = $1, unread_count = 0
		 WHERE chat_id = $2 AND user_id = $3`,
		lastReadMessageID, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("chatStore.SetReadState: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// Package chat реализует ядро переписки: хранение чатов, движок
// непрочитанного (per-participant unread_count + last_read_message) и контроль
// членства (кто может писать, читать и добавлять участников).
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// Notifier получает события ядра после успешного коммита (WebSocket, пуши).
// Реализации не должны блокировать вызывающего надолго.
type Notifier interface {
	ChatCreated(chat *model.Chat, participantIDs []string)
	MessageSent(chat *model.Chat, msg *model.ChatMessage, recipientIDs []string)
	MessagesRead(chatID, userID string)
	MembersAdded(chatID string, added []model.ChatParticipant)
}

type Service struct {
	store    Store
	notifier Notifier // nil — уведомления выключены
	locks    chatLocks
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// CreateChat создаёт чат: создатель становится админом, приглашённые —
// участниками. Тип чата выводится из итогового числа участников.
func (s *Service) CreateChat(ctx context.Context, creatorID string, inviteeIDs []string, title string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.CreateChat", time.Now())()
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(inviteeIDs) == 0 {
		return nil, &ValidationError{Field: "invitees", Reason: "invitee list is empty"}
	}
	seen := make(map[string]struct{}, len(inviteeIDs))
	invitees := make([]string, 0, len(inviteeIDs))
	for _, id := range inviteeIDs {
		if id == creatorID {
			return nil, &ValidationError{Field: "invitees", UserID: id, Reason: "creator cannot invite themselves"}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		invitees = append(invitees, id)
	}

	now := time.Now().UTC()
	c := &model.Chat{
		ID:        uuid.New().String(),
		Title:     title,
		ChatType:  model.DeriveChatType(1 + len(invitees)),
		CreatedBy: creatorID,
		CreatedAt: now,
	}
	participantIDs := append([]string{creatorID}, invitees...)

	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.CreateChat(ctx, c); err != nil {
			return err
		}
		creator := &model.ChatParticipant{
			ID:        uuid.New().String(),
			ChatID:    c.ID,
			UserID:    creatorID,
			Role:      model.ParticipantRoleAdmin,
			CreatedAt: now,
		}
		if err := tx.AddParticipant(ctx, creator); err != nil {
			return err
		}
		for _, id := range invitees {
			p := &model.ChatParticipant{
				ID:        uuid.New().String(),
				ChatID:    c.ID,
				UserID:    id,
				Role:      model.ParticipantRoleMember,
				CreatedAt: now,
			}
			if err := tx.AddParticipant(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat.CreateChat: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ChatCreated(c, participantIDs)
	}
	return c, nil
}

// ListChats возвращает чаты пользователя с последним сообщением и его
// счётчиком непрочитанного, свежие по активности сверху.
func (s *Service) ListChats(ctx context.Context, userID string) ([]model.ChatWithState, error) {
	defer logger.DeferLogDuration("chat.ListChats", time.Now())()
	chats, err := s.store.ChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat.ListChats: %w", err)
	}
	return s.withState(ctx, chats, userID)
}

// SearchChats — чаты пользователя, чей заголовок содержит подстроку (без учёта регистра).
func (s *Service) SearchChats(ctx context.Context, userID, titleQuery string) ([]model.ChatWithState, error) {
	defer logger.DeferLogDuration("chat.SearchChats", time.Now())()
	chats, err := s.store.SearchChatsForUser(ctx, userID, titleQuery)
	if err != nil {
		return nil, fmt.Errorf("chat.SearchChats: %w", err)
	}
	return s.withState(ctx, chats, userID)
}

func (s *Service) withState(ctx context.Context, chats []model.Chat, userID string) ([]model.ChatWithState, error) {
	out := make([]model.ChatWithState, 0, len(chats))
	for i := range chats {
		last, err := s.store.LastMessage(ctx, chats[i].ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("chat.withState last message: %w", err)
		}
		unread, err := s.UnreadCount(ctx, chats[i].ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ChatWithState{Chat: chats[i], LastMessage: last, UnreadCount: unread})
	}
	return out, nil
}

// ListMessages отдаёт сообщения чата от новых к старым. Не-участник получает
// ErrNotParticipant — данные не возвращаются даже частично.
func (s *Service) ListMessages(ctx context.Context, chatID, requesterID, searchText string, limit, offset int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("chat.ListMessages", time.Now())()
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := s.store.Messages(ctx, chatID, searchText, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("chat.ListMessages: %w", err)
	}
	return msgs, nil
}

// SendMessage создаёт сообщение и раздаёт эффект всем остальным участникам:
// одна транзакция вставляет сообщение, двигает last_message_at и одним батчем
// увеличивает unread_count — частичный fan-out снаружи не виден.
// Отправитель сразу попадает в read_by собственного сообщения.
func (s *Service) SendMessage(ctx context.Context, chatID, senderID, content string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("chat.SendMessage", time.Now())()
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "content is required"}
	}

	mu := s.locks.forChat(chatID)
	mu.Lock()
	defer mu.Unlock()

	c, err := s.chatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &model.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: now,
		ReadBy:    []string{senderID},
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.InsertMessage(ctx, m); err != nil {
			return err
		}
		if err := tx.MarkRead(ctx, []string{m.ID}, senderID, now); err != nil {
			return err
		}
		if err := tx.SetLastMessageAt(ctx, chatID, now); err != nil {
			return err
		}
		return tx.IncrementUnread(ctx, chatID, senderID)
	})
	if err != nil {
		return nil, fmt.Errorf("chat.SendMessage: %w", err)
	}
	c.LastMessageAt = &now

	if s.notifier != nil {
		if recipients, err := s.recipientIDs(ctx, chatID, senderID); err == nil {
			s.notifier.MessageSent(c, m, recipients)
		} else {
			logger.Errorf("chat.SendMessage notify chat=%s: %v", chatID, err)
		}
	}
	return m, nil
}

// MarkAllRead отмечает прочитанными все сообщения чата, которых пользователь
// ещё не видел, переводит last_read_message на самое свежее из них и обнуляет
// unread_count. Без непрочитанного — no-op; повторный вызов ничего не меняет.
func (s *Service) MarkAllRead(ctx context.Context, chatID, userID string) error {
	defer logger.DeferLogDuration("chat.MarkAllRead", time.Now())()

	mu := s.locks.forChat(chatID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.chatByID(ctx, chatID); err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	changed := false
	err := s.store.InTx(ctx, func(tx Store) error {
		unread, err := tx.UnreadMessages(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if len(unread) == 0 {
			return nil
		}
		ids := make([]string, len(unread))
		for i := range unread {
			ids[i] = unread[i].ID
		}
		if err := tx.MarkRead(ctx, ids, userID, now); err != nil {
			return err
		}
		// unread отсортирован от новых к старым: [0] — самое свежее.
		newest := unread[0].ID
		if err := tx.SetReadState(ctx, chatID, userID, &newest); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat.MarkAllRead: %w", err)
	}

	if changed && s.notifier != nil {
		s.notifier.MessagesRead(chatID, userID)
	}
	return nil
}

// UnreadCount возвращает сохранённый счётчик участника; для пользователя без
// записи участника — 0 без ошибки.
func (s *Service) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	p, err := s.store.Participant(ctx, chatID, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chat.UnreadCount: %w", err)
	}
	return p.UnreadCount, nil
}

// Participants возвращает записи участников чата; запрашивать может только участник.
func (s *Service) Participants(ctx context.Context, chatID, requesterID string) ([]model.ChatParticipant, error) {
	defer logger.DeferLogDuration("chat.Participants", time.Now())()
	if _, err := s.chatByID(ctx, chatID); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	ps, err := s.store.Participants(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("chat.Participants: %w", err)
	}
	return ps, nil
}

// AddParticipants добавляет пользователей в чат. Требует роли админа чата.
// Если хоть один уже участник — отклоняется весь вызов, ни одной вставки
// (уникальность (chat_id, user_id) в БД страхует от гонки). После успеха
// тип чата пересчитывается по новому числу участников.
func (s *Service) AddParticipants(ctx context.Context, chatID, requesterID string, userIDs []string) ([]model.ChatParticipant, error) {
	defer logger.DeferLogDuration("chat.AddParticipants", time.Now())()
	if len(userIDs) == 0 {
		return nil, &ValidationError{Field: "user_ids", Reason: "user list is empty"}
	}

	mu := s.locks.forChat(chatID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.chatByID(ctx, chatID); err != nil {
		return nil, err
	}
	requester, err := s.store.Participant(ctx, chatID, requesterID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("chat.AddParticipants: %w", err)
	}
	if requester.Role != model.ParticipantRoleAdmin {
		return nil, ErrNotAdmin
	}

	now := time.Now().UTC()
	added := make([]model.ChatParticipant, 0, len(userIDs))
	err = s.store.InTx(ctx, func(tx Store) error {
		for _, id := range userIDs {
			_, err := tx.Participant(ctx, chatID, id)
			if err == nil {
				return &ValidationError{UserID: id, Reason: "already a participant"}
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			p := &model.ChatParticipant{
				ID:        uuid.New().String(),
				ChatID:    chatID,
				UserID:    id,
				Role:      model.ParticipantRoleMember,
				CreatedAt: now,
			}
			if err := tx.AddParticipant(ctx, p); err != nil {
				// Уникальный индекс (chat_id, user_id) — страховка от гонки,
				// прошедшей мимо проверки выше; ответ тот же, что у проверки.
				if errors.Is(err, ErrDuplicateParticipant) {
					return &ValidationError{UserID: id, Reason: "already a participant"}
				}
				return err
			}
			added = append(added, *p)
		}
		count, err := tx.ParticipantCount(ctx, chatID)
		if err != nil {
			return err
		}
		return tx.SetChatType(ctx, chatID, model.DeriveChatType(count))
	})
	if err != nil {
		if IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("chat.AddParticipants: %w", err)
	}

	if s.notifier != nil {
		s.notifier.MembersAdded(chatID, added)
	}
	return added, nil
}

// IsParticipant — предикат авторизации для внешних слоёв (WebSocket, пуши).
func (s *Service) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	_, err := s.store.Participant(ctx, chatID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("chat.IsParticipant: %w", err)
	}
	return true, nil
}

func (s *Service) chatByID(ctx context.Context, chatID string) (*model.Chat, error) {
	c, err := s.store.ChatByID(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load chat: %w", err)
	}
	return c, nil
}

func (s *Service) requireParticipant(ctx context.Context, chatID, userID string) error {
	_, err := s.store.Participant(ctx, chatID, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotParticipant
	}
	if err != nil {
		return fmt.Errorf("chat: load participant: %w", err)
	}
	return nil
}

func (s *Service) recipientIDs(ctx context.Context, chatID, exceptUserID string) ([]string, error) {
	ps, err := s.store.Participants(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ps))
	for i := range ps {
		if ps[i].UserID != exceptUserID {
			ids = append(ids, ps[i].UserID)
		}
	}
	return ids, nil
}

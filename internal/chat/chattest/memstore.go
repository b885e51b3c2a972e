package chattest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// Store — in-memory реализация chat.Store для тестов. InTx работает через
// снимок состояния: ошибка из fn откатывает все изменения, как и в
// Postgres-реализации. Мьютекс удерживается на всю транзакцию, fn получает
// txStore — вид без блокировок, привязанный к открытой транзакции.
type Store struct {
	mu           sync.Mutex
	chats        map[string]*model.Chat
	messages     map[string]*model.ChatMessage
	participants map[string]*model.ChatParticipant // key: chatID+"/"+userID
	reads        map[string]time.Time              // key: messageID+"/"+userID
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		chats:        make(map[string]*model.Chat),
		messages:     make(map[string]*model.ChatMessage),
		participants: make(map[string]*model.ChatParticipant),
		reads:        make(map[string]time.Time),
	}
}

func (s *Store) InTx(_ context.Context, fn func(chat.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(txStore{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	chats        map[string]*model.Chat
	messages     map[string]*model.ChatMessage
	participants map[string]*model.ChatParticipant
	reads        map[string]time.Time
}

func (s *Store) snapshot() memSnapshot {
	snap := memSnapshot{
		chats:        make(map[string]*model.Chat, len(s.chats)),
		messages:     make(map[string]*model.ChatMessage, len(s.messages)),
		participants: make(map[string]*model.ChatParticipant, len(s.participants)),
		reads:        make(map[string]time.Time, len(s.reads)),
	}
	for k, v := range s.chats {
		c := *v
		snap.chats[k] = &c
	}
	for k, v := range s.messages {
		m := *v
		snap.messages[k] = &m
	}
	for k, v := range s.participants {
		p := *v
		snap.participants[k] = &p
	}
	for k, v := range s.reads {
		snap.reads[k] = v
	}
	return snap
}

func (s *Store) restore(snap memSnapshot) {
	s.chats = snap.chats
	s.messages = snap.messages
	s.participants = snap.participants
	s.reads = snap.reads
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) CreateChat(_ context.Context, c *model.Chat) error {
	defer s.lock()()
	return s.createChat(c)
}

func (s *Store) ChatByID(_ context.Context, chatID string) (*model.Chat, error) {
	defer s.lock()()
	return s.chatByID(chatID)
}

func (s *Store) SetChatType(_ context.Context, chatID string, t model.ChatType) error {
	defer s.lock()()
	return s.setChatType(chatID, t)
}

func (s *Store) SetLastMessageAt(_ context.Context, chatID string, at time.Time) error {
	defer s.lock()()
	return s.setLastMessageAt(chatID, at)
}

func (s *Store) ChatsForUser(_ context.Context, userID string) ([]model.Chat, error) {
	defer s.lock()()
	return s.chatsForUser(userID, "")
}

func (s *Store) SearchChatsForUser(_ context.Context, userID, titleQuery string) ([]model.Chat, error) {
	defer s.lock()()
	return s.chatsForUser(userID, titleQuery)
}

func (s *Store) AddParticipant(_ context.Context, p *model.ChatParticipant) error {
	defer s.lock()()
	return s.addParticipant(p)
}

func (s *Store) Participant(_ context.Context, chatID, userID string) (*model.ChatParticipant, error) {
	defer s.lock()()
	return s.participant(chatID, userID)
}

func (s *Store) Participants(_ context.Context, chatID string) ([]model.ChatParticipant, error) {
	defer s.lock()()
	return s.participantsOf(chatID)
}

func (s *Store) ParticipantCount(_ context.Context, chatID string) (int, error) {
	defer s.lock()()
	return s.participantCount(chatID)
}

func (s *Store) InsertMessage(_ context.Context, m *model.ChatMessage) error {
	defer s.lock()()
	return s.insertMessage(m)
}

func (s *Store) Messages(_ context.Context, chatID, searchText string, limit, offset int) ([]model.ChatMessage, error) {
	defer s.lock()()
	return s.messagesPage(chatID, searchText, limit, offset)
}

func (s *Store) LastMessage(_ context.Context, chatID string) (*model.ChatMessage, error) {
	defer s.lock()()
	return s.lastMessage(chatID)
}

func (s *Store) UnreadMessages(_ context.Context, chatID, userID string) ([]model.ChatMessage, error) {
	defer s.lock()()
	return s.unreadMessages(chatID, userID)
}

func (s *Store) MarkRead(_ context.Context, messageIDs []string, userID string, at time.Time) error {
	defer s.lock()()
	return s.markRead(messageIDs, userID, at)
}

func (s *Store) IncrementUnread(_ context.Context, chatID, exceptUserID string) error {
	defer s.lock()()
	return s.incrementUnread(chatID, exceptUserID)
}

func (s *Store) SetReadState(_ context.Context, chatID, userID string, lastReadMessageID *string) error {
	defer s.lock()()
	return s.setReadState(chatID, userID, lastReadMessageID)
}

// txStore — вид Store внутри InTx: мьютекс уже удерживается, методы идут
// напрямую к данным. Вложенные транзакции не поддерживаются, как и в
// Postgres-реализации.
type txStore struct {
	s *Store
}

func (t txStore) InTx(context.Context, func(chat.Store) error) error {
	return errors.New("chattest: nested transactions are not supported")
}

func (t txStore) CreateChat(_ context.Context, c *model.Chat) error {
	return t.s.createChat(c)
}

func (t txStore) ChatByID(_ context.Context, chatID string) (*model.Chat, error) {
	return t.s.chatByID(chatID)
}

func (t txStore) SetChatType(_ context.Context, chatID string, ct model.ChatType) error {
	return t.s.setChatType(chatID, ct)
}

func (t txStore) SetLastMessageAt(_ context.Context, chatID string, at time.Time) error {
	return t.s.setLastMessageAt(chatID, at)
}

func (t txStore) ChatsForUser(_ context.Context, userID string) ([]model.Chat, error) {
	return t.s.chatsForUser(userID, "")
}

func (t txStore) SearchChatsForUser(_ context.Context, userID, titleQuery string) ([]model.Chat, error) {
	return t.s.chatsForUser(userID, titleQuery)
}

func (t txStore) AddParticipant(_ context.Context, p *model.ChatParticipant) error {
	return t.s.addParticipant(p)
}

func (t txStore) Participant(_ context.Context, chatID, userID string) (*model.ChatParticipant, error) {
	return t.s.participant(chatID, userID)
}

func (t txStore) Participants(_ context.Context, chatID string) ([]model.ChatParticipant, error) {
	return t.s.participantsOf(chatID)
}

func (t txStore) ParticipantCount(_ context.Context, chatID string) (int, error) {
	return t.s.participantCount(chatID)
}

func (t txStore) InsertMessage(_ context.Context, m *model.ChatMessage) error {
	return t.s.insertMessage(m)
}

func (t txStore) Messages(_ context.Context, chatID, searchText string, limit, offset int) ([]model.ChatMessage, error) {
	return t.s.messagesPage(chatID, searchText, limit, offset)
}

func (t txStore) LastMessage(_ context.Context, chatID string) (*model.ChatMessage, error) {
	return t.s.lastMessage(chatID)
}

func (t txStore) UnreadMessages(_ context.Context, chatID, userID string) ([]model.ChatMessage, error) {
	return t.s.unreadMessages(chatID, userID)
}

func (t txStore) MarkRead(_ context.Context, messageIDs []string, userID string, at time.Time) error {
	return t.s.markRead(messageIDs, userID, at)
}

func (t txStore) IncrementUnread(_ context.Context, chatID, exceptUserID string) error {
	return t.s.incrementUnread(chatID, exceptUserID)
}

func (t txStore) SetReadState(_ context.Context, chatID, userID string, lastReadMessageID *string) error {
	return t.s.setReadState(chatID, userID, lastReadMessageID)
}

// Нижний слой: доступ к данным без блокировок. Вызывается только под s.mu.

func (s *Store) createChat(c *model.Chat) error {
	cp := *c
	s.chats[c.ID] = &cp
	return nil
}

func (s *Store) chatByID(chatID string) (*model.Chat, error) {
	c, ok := s.chats[chatID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) setChatType(chatID string, t model.ChatType) error {
	c, ok := s.chats[chatID]
	if !ok {
		return chat.ErrNotFound
	}
	c.ChatType = t
	return nil
}

func (s *Store) setLastMessageAt(chatID string, at time.Time) error {
	c, ok := s.chats[chatID]
	if !ok {
		return chat.ErrNotFound
	}
	c.LastMessageAt = &at
	return nil
}

func (s *Store) chatsForUser(userID, titleQuery string) ([]model.Chat, error) {
	var out []model.Chat
	for _, p := range s.participants {
		if p.UserID != userID {
			continue
		}
		c := s.chats[p.ChatID]
		if titleQuery != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(titleQuery)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if out[i].LastMessageAt != nil {
			ti = *out[i].LastMessageAt
		}
		if out[j].LastMessageAt != nil {
			tj = *out[j].LastMessageAt
		}
		return ti.After(tj)
	})
	return out, nil
}

func (s *Store) addParticipant(p *model.ChatParticipant) error {
	key := p.ChatID + "/" + p.UserID
	if _, exists := s.participants[key]; exists {
		return chat.ErrDuplicateParticipant
	}
	cp := *p
	s.participants[key] = &cp
	return nil
}

func (s *Store) participant(chatID, userID string) (*model.ChatParticipant, error) {
	p, ok := s.participants[chatID+"/"+userID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) participantsOf(chatID string) ([]model.ChatParticipant, error) {
	var out []model.ChatParticipant
	for _, p := range s.participants {
		if p.ChatID == chatID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) participantCount(chatID string) (int, error) {
	n := 0
	for _, p := range s.participants {
		if p.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

func (s *Store) insertMessage(m *model.ChatMessage) error {
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *Store) messagesPage(chatID, searchText string, limit, offset int) ([]model.ChatMessage, error) {
	msgs := s.chatMessages(chatID, searchText)
	if offset >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *Store) lastMessage(chatID string) (*model.ChatMessage, error) {
	msgs := s.chatMessages(chatID, "")
	if len(msgs) == 0 {
		return nil, chat.ErrNotFound
	}
	return &msgs[0], nil
}

func (s *Store) unreadMessages(chatID, userID string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if _, read := s.reads[m.ID+"/"+userID]; read {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) markRead(messageIDs []string, userID string, at time.Time) error {
	for _, id := range messageIDs {
		key := id + "/" + userID
		if _, done := s.reads[key]; done {
			continue
		}
		s.reads[key] = at
		if m, ok := s.messages[id]; ok {
			m.ReadBy = append(m.ReadBy, userID)
		}
	}
	return nil
}

func (s *Store) incrementUnread(chatID, exceptUserID string) error {
	for _, p := range s.participants {
		if p.ChatID == chatID && p.UserID != exceptUserID {
			p.UnreadCount++
		}
	}
	return nil
}

func (s *Store) setReadState(chatID, userID string, lastReadMessageID *string) error {
	p, ok := s.participants[chatID+"/"+userID]
	if !ok {
		return chat.ErrNotFound
	}
	p.LastReadMessageID = lastReadMessageID
	p.UnreadCount = 0
	return nil
}

func (s *Store) chatMessages(chatID, searchText string) []model.ChatMessage {
	var out []model.ChatMessage
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if searchText != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(searchText)) {
			continue
		}
		cp := *m
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

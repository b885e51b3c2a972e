// Package ws — realtime-слой: WebSocket-хаб раздаёт события переписки всем
// соединениям пользователя и реализует chat.Notifier.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/push"
)

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int

	chatSvc *chat.Service
	pusher  *push.Sender

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns int, pusher *push.Sender) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		pusher:     pusher,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetChatService связывает хаб с ядром переписки. Вызывается один раз при
// старте: хаб и сервис ссылаются друг на друга (сервис шлёт события хабу,
// хаб зовёт операции сервиса).
func (h *Hub) SetChatService(svc *chat.Service) {
	h.chatSvc = svc
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Клиентов собираем под локом, сетевой I/O — вне его.
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.Close()
}

// HandleMessage разбирает входящие WebSocket-события клиента.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventMessagesRead:
		h.handleMessagesRead(ctx, c, msg)
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	if msg.ChatID == "" || msg.Content == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "chat_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Fan-out по остальным участникам сделает сервис через MessageSent.
	if _, err := h.chatSvc.SendMessage(ctx, msg.ChatID, c.userID, msg.Content); err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: sendErrorText(err)})
	}
}

func (h *Hub) handleMessagesRead(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleMessagesRead", time.Now())()
	if msg.ChatID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.chatSvc.MarkAllRead(ctx, msg.ChatID, c.userID); err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: sendErrorText(err)})
	}
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	participants, err := h.chatSvc.Participants(ctx, msg.ChatID, c.userID)
	if err != nil {
		return
	}

	out := OutgoingMessage{Type: EventTyping, Payload: TypingPayload{ChatID: msg.ChatID, UserID: c.userID}}
	for i := range participants {
		if participants[i].UserID != c.userID {
			h.sendToUser(participants[i].UserID, out)
		}
	}
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		return "chat not found"
	case errors.Is(err, chat.ErrNotParticipant):
		return "not a participant"
	case chat.IsValidation(err):
		return err.Error()
	default:
		logger.Errorf("ws chat operation: %v", err)
		return "internal error"
	}
}

// --- chat.Notifier ---

// ChatCreated уведомляет всех участников нового чата.
func (h *Hub) ChatCreated(c *model.Chat, participantIDs []string) {
	out := OutgoingMessage{Type: EventChatCreated, Payload: ChatCreatedPayload{Chat: c}}
	for _, uid := range participantIDs {
		h.sendToUser(uid, out)
	}
}

// MessageSent раздаёт новое сообщение: отправителю и онлайн-получателям —
// по WebSocket, получателям без единого соединения — Web Push.
func (h *Hub) MessageSent(c *model.Chat, m *model.ChatMessage, recipientIDs []string) {
	out := OutgoingMessage{Type: EventNewMessage, Payload: NewMessagePayload{Chat: c, Message: m}}
	h.sendToUser(m.SenderID, out)

	for _, uid := range recipientIDs {
		delivered := h.sendToUser(uid, out)
		if !delivered && h.pusher.Enabled() {
			body := truncateBody(m.Content, 120)
			go h.pusher.Notify(context.Background(), uid, push.Payload{
				Title: c.Title,
				Body:  body,
				Data:  map[string]string{"chat_id": c.ID, "message_id": m.ID},
			})
		}
	}
}

// MessagesRead уведомляет остальных участников, что пользователь прочитал чат.
func (h *Hub) MessagesRead(chatID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	participants, err := h.chatSvc.Participants(ctx, chatID, userID)
	if err != nil {
		logger.Errorf("ws messages_read participants chat=%s: %v", chatID, err)
		return
	}
	out := OutgoingMessage{Type: EventMessagesRead, Payload: MessagesReadPayload{ChatID: chatID, UserID: userID}}
	for i := range participants {
		if participants[i].UserID != userID {
			h.sendToUser(participants[i].UserID, out)
		}
	}
}

// MembersAdded уведомляет весь чат (включая самих новичков) о каждом новом участнике.
func (h *Hub) MembersAdded(chatID string, added []model.ChatParticipant) {
	if len(added) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	participants, err := h.chatSvc.Participants(ctx, chatID, added[0].UserID)
	if err != nil {
		logger.Errorf("ws member_added participants chat=%s: %v", chatID, err)
		return
	}
	for j := range added {
		out := OutgoingMessage{Type: EventMemberAdded, Payload: MemberAddedPayload{ChatID: chatID, Member: added[j]}}
		for i := range participants {
			h.sendToUser(participants[i].UserID, out)
		}
	}
}

// sendToUser шлёт событие во все соединения пользователя; false — соединений нет.
func (h *Hub) sendToUser(userID string, msg OutgoingMessage) bool {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return false
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
	return len(targets) > 0
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Буфер отправки переполнен: закрываем медленного клиента.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// truncateBody обрезает текст пуш-уведомления до max рун, не разрывая
// многобайтовые символы.
func truncateBody(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/chat/chattest"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

type notifierSpy struct {
	mu            sync.Mutex
	created       int
	sent          int
	read          int
	membersAdded  int
	lastRecipient []string
}

func (n *notifierSpy) ChatCreated(_ *model.Chat, _ []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created++
}

func (n *notifierSpy) MessageSent(_ *model.Chat, _ *model.ChatMessage, recipientIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.lastRecipient = recipientIDs
}

func (n *notifierSpy) MessagesRead(_, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.read++
}

func (n *notifierSpy) MembersAdded(_ string, _ []model.ChatParticipant) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.membersAdded++
}

func newTestService() (*chat.Service, *chattest.Store, *notifierSpy) {
	store := chattest.NewStore()
	spy := &notifierSpy{}
	return chat.NewService(store, spy), store, spy
}

func TestCreateChatDerivesType(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	private, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "Алиса и Боб")
	require.NoError(t, err)
	assert.Equal(t, model.ChatTypePrivate, private.ChatType)

	group, err := svc.CreateChat(ctx, "alice", []string{"bob", "carol"}, "5Б класс")
	require.NoError(t, err)
	assert.Equal(t, model.ChatTypeGroup, group.ChatType)
}

func TestCreateChatCreatorIsAdmin(t *testing.T) {
	svc, store, spy := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	creator, err := store.Participant(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantRoleAdmin, creator.Role)

	invitee, err := store.Participant(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantRoleMember, invitee.Role)
	assert.Zero(t, invitee.UnreadCount)
	assert.Nil(t, invitee.LastReadMessageID)

	assert.Equal(t, 1, spy.created)
}

func TestCreateChatValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateChat(ctx, "alice", nil, "test")
	assert.True(t, chat.IsValidation(err), "empty invitee list must fail validation")

	_, err = svc.CreateChat(ctx, "alice", []string{"alice"}, "test")
	assert.True(t, chat.IsValidation(err), "self-invite must fail validation")

	_, err = svc.CreateChat(ctx, "alice", []string{"bob"}, "")
	assert.True(t, chat.IsValidation(err), "empty title must fail validation")
}

func TestCreateChatDeduplicatesInvitees(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob", "bob", "carol"}, "test")
	require.NoError(t, err)

	n, err := store.ParticipantCount(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSendMessageFansOutUnread(t *testing.T) {
	svc, store, spy := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob", "carol"}, "test")
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, c.ID, "alice", "привет")
	require.NoError(t, err)
	assert.Contains(t, msg.ReadBy, "alice", "sender reads their own message")

	for user, want := range map[string]int{"alice": 0, "bob": 1, "carol": 1} {
		n, err := svc.UnreadCount(ctx, c.ID, user)
		require.NoError(t, err)
		assert.Equal(t, want, n, "unread for %s", user)
	}

	got, err := store.ChatByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.Equal(t, msg.CreatedAt, *got.LastMessageAt)

	assert.Equal(t, 1, spy.sent)
	assert.ElementsMatch(t, []string{"bob", "carol"}, spy.lastRecipient)
}

func TestSendMessageGates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "no-such-chat", "alice", "hi")
	assert.ErrorIs(t, err, chat.ErrChatNotFound)

	_, err = svc.SendMessage(ctx, c.ID, "mallory", "hi")
	assert.ErrorIs(t, err, chat.ErrNotParticipant)

	_, err = svc.SendMessage(ctx, c.ID, "alice", "")
	assert.True(t, chat.IsValidation(err))
}

func TestMarkAllRead(t *testing.T) {
	svc, store, spy := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, c.ID, "alice", "первое")
	require.NoError(t, err)
	last, err := svc.SendMessage(ctx, c.ID, "alice", "второе")
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, c.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, svc.MarkAllRead(ctx, c.ID, "bob"))

	n, err = svc.UnreadCount(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	p, err := store.Participant(ctx, c.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, last.ID, *p.LastReadMessageID, "pointer lands on the newest message")

	unread, err := store.UnreadMessages(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.Equal(t, 1, spy.read)
}

func TestMarkAllReadIdempotent(t *testing.T) {
	svc, store, spy := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, c.ID, "alice", "hi")
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, c.ID, "bob"))
	require.NoError(t, svc.MarkAllRead(ctx, c.ID, "bob"))

	p, err := store.Participant(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, p.UnreadCount)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, msg.ID, *p.LastReadMessageID)
	assert.Equal(t, 1, spy.read, "second call is a no-op and fires no event")

	// В пустом чате тоже no-op.
	empty, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "empty")
	require.NoError(t, err)
	require.NoError(t, svc.MarkAllRead(ctx, empty.ID, "bob"))
	assert.Equal(t, 1, spy.read)
}

func TestMarkAllReadGates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkAllRead(ctx, "no-such-chat", "bob"), chat.ErrChatNotFound)
	assert.ErrorIs(t, svc.MarkAllRead(ctx, c.ID, "mallory"), chat.ErrNotParticipant)
}

func TestUnreadCountForOutsiderIsZero(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "alice", "hi")
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, c.ID, "mallory")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddParticipantsAdminOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	_, err = svc.AddParticipants(ctx, c.ID, "bob", []string{"carol"})
	assert.ErrorIs(t, err, chat.ErrNotAdmin)

	_, err = svc.AddParticipants(ctx, c.ID, "mallory", []string{"carol"})
	assert.ErrorIs(t, err, chat.ErrNotParticipant)

	added, err := svc.AddParticipants(ctx, c.ID, "alice", []string{"carol"})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, model.ParticipantRoleMember, added[0].Role)
}

func TestAddParticipantsAllOrNothing(t *testing.T) {
	svc, store, spy := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	// bob уже участник: отклоняется весь батч, carol не добавлена.
	_, err = svc.AddParticipants(ctx, c.ID, "alice", []string{"carol", "bob"})
	require.Error(t, err)
	assert.True(t, chat.IsValidation(err))
	var ve *chat.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bob", ve.UserID)

	_, err = store.Participant(ctx, c.ID, "carol")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	n, err := store.ParticipantCount(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, spy.membersAdded)
}

// insertDupStore имитирует гонку двух процессов: проверка участия проходит,
// но вставка упирается в уникальный индекс.
type insertDupStore struct {
	chat.Store
	dupUserID string
}

func (d insertDupStore) InTx(ctx context.Context, fn func(chat.Store) error) error {
	return d.Store.InTx(ctx, func(tx chat.Store) error {
		return fn(insertDupStore{Store: tx, dupUserID: d.dupUserID})
	})
}

func (d insertDupStore) AddParticipant(ctx context.Context, p *model.ChatParticipant) error {
	if p.UserID == d.dupUserID {
		return chat.ErrDuplicateParticipant
	}
	return d.Store.AddParticipant(ctx, p)
}

func TestAddParticipantsDuplicateOnInsert(t *testing.T) {
	mem := chattest.NewStore()
	spy := &notifierSpy{}
	svc := chat.NewService(insertDupStore{Store: mem, dupUserID: "carol"}, spy)
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	_, err = svc.AddParticipants(ctx, c.ID, "alice", []string{"carol"})
	require.Error(t, err)
	assert.True(t, chat.IsValidation(err))
	var ve *chat.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "carol", ve.UserID)
	assert.Zero(t, spy.membersAdded)
}

func TestAddParticipantsRecomputesType(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)
	require.Equal(t, model.ChatTypePrivate, c.ChatType)

	_, err = svc.AddParticipants(ctx, c.ID, "alice", []string{"carol"})
	require.NoError(t, err)

	got, err := store.ChatByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChatTypeGroup, got.ChatType)
}

func TestListMessagesOrderAndGate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, c.ID, "alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	_, err = svc.ListMessages(ctx, c.ID, "mallory", "", 50, 0)
	assert.ErrorIs(t, err, chat.ErrNotParticipant)

	msgs, err := svc.ListMessages(ctx, c.ID, "bob", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 2", msgs[0].Content, "newest first")
	assert.Equal(t, "msg 0", msgs[2].Content)

	filtered, err := svc.ListMessages(ctx, c.ID, "bob", "MSG 1", 50, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "msg 1", filtered[0].Content)
}

func TestListChatsCarriesState(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c1, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "Математика")
	require.NoError(t, err)
	_, err = svc.CreateChat(ctx, "alice", []string{"carol"}, "Физика")
	require.NoError(t, err)

	last, err := svc.SendMessage(ctx, c1.ID, "alice", "домашка на завтра")
	require.NoError(t, err)

	chats, err := svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, last.ID, chats[0].LastMessage.ID)
	assert.Equal(t, 1, chats[0].UnreadCount)

	found, err := svc.SearchChats(ctx, "alice", "мате")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, c1.ID, found[0].Chat.ID)
}

func TestConcurrentSendsKeepCounterExact(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "alice", []string{"bob"}, "test")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, c.ID, "alice", fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.UnreadCount(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestReadScenario(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "teacher", []string{"parent", "student"}, "5Б: объявления")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, c.ID, "teacher", "завтра контрольная")
	require.NoError(t, err)
	require.NoError(t, svc.MarkAllRead(ctx, c.ID, "parent"))

	reply, err := svc.SendMessage(ctx, c.ID, "parent", "спасибо, предупредим")
	require.NoError(t, err)

	for user, want := range map[string]int{"teacher": 1, "parent": 0, "student": 2} {
		n, err := svc.UnreadCount(ctx, c.ID, user)
		require.NoError(t, err)
		assert.Equal(t, want, n, "unread for %s", user)
	}

	require.NoError(t, svc.MarkAllRead(ctx, c.ID, "student"))
	p, err := store.Participant(ctx, c.ID, "student")
	require.NoError(t, err)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, reply.ID, *p.LastReadMessageID)

	ok, err := svc.IsParticipant(ctx, c.ID, "student")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsParticipant(ctx, c.ID, "outsider")
	require.NoError(t, err)
	assert.False(t, ok)
}

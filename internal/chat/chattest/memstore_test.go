package chattest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/chat/chattest"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

func newChat(t *testing.T, s *chattest.Store, id string) {
	t.Helper()
	err := s.CreateChat(context.Background(), &model.Chat{ID: id, Title: id, CreatedAt: time.Now()})
	require.NoError(t, err)
}

// Запись в один чат не должна гоняться с транзакцией над другим: InTx держит
// мьютекс на всю транзакцию, остальные вызовы ждут её завершения.
func TestStoreInTxConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := chattest.NewStore()
	newChat(t, store, "a")
	newChat(t, store, "b")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := store.InTx(ctx, func(tx chat.Store) error {
			for i := 0; i < 100; i++ {
				if err := tx.SetLastMessageAt(ctx, "a", time.Now()); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			require.NoError(t, store.SetLastMessageAt(ctx, "b", time.Now()))
		}
	}()
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		c, err := store.ChatByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, c.LastMessageAt)
	}
}

func TestStoreInTxRollback(t *testing.T) {
	ctx := context.Background()
	store := chattest.NewStore()
	newChat(t, store, "a")

	err := store.InTx(ctx, func(tx chat.Store) error {
		require.NoError(t, tx.SetChatType(ctx, "a", model.ChatTypeGroup))
		return chat.ErrNotFound
	})
	require.ErrorIs(t, err, chat.ErrNotFound)

	c, err := store.ChatByID(ctx, "a")
	require.NoError(t, err)
	require.NotEqual(t, model.ChatTypeGroup, c.ChatType)
}

func TestStoreNestedTxRejected(t *testing.T) {
	ctx := context.Background()
	store := chattest.NewStore()

	err := store.InTx(ctx, func(tx chat.Store) error {
		return tx.InTx(ctx, func(chat.Store) error { return nil })
	})
	require.Error(t, err)
}

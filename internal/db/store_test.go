package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func mustCreateUser(t *testing.T, store *Store, username string) *models.User {
	t.Helper()

	u, err := store.CreateUser(context.Background(), username, username+"@example.edu", "hash-"+username)
	require.NoError(t, err)
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, store, "alice")
	req.NotZero(alice.ID)

	byID, err := store.GetUser(ctx, alice.ID)
	req.NoError(err)
	req.Equal("alice", byID.Username)
	req.Equal("hash-alice", byID.PasswordHash)

	byName, err := store.GetUserByUsername(ctx, "alice")
	req.NoError(err)
	req.Equal(alice.ID, byName.ID)

	_, err = store.GetUser(ctx, alice.ID+100)
	req.ErrorIs(err, ErrNotFound)

	_, err = store.CreateUser(ctx, "alice", "other@example.edu", "x")
	req.ErrorIs(err, ErrConflict)
}

func TestUpsertUser(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	u := &models.User{ID: 9001, Username: "tailnet-bob", Email: "bob@tailnet"}
	req.NoError(store.UpsertUser(ctx, u))

	u.Username = "tailnet-robert"
	req.NoError(store.UpsertUser(ctx, u))

	got, err := store.GetUser(ctx, 9001)
	req.NoError(err)
	req.Equal("tailnet-robert", got.Username)

	mustCreateUser(t, store, "carol")
	err = store.UpsertUser(ctx, &models.User{ID: 9002, Username: "carol"})
	req.ErrorIs(err, ErrConflict)
}

func TestConversationHistory(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, store, "alice")
	b := mustCreateUser(t, store, "bob")
	c := mustCreateUser(t, store, "carol")

	var ids []int64
	for i, content := range []string{"one", "two", "three", "four"} {
		sender, receiver := a.ID, b.ID
		if i%2 == 1 {
			sender, receiver = b.ID, a.ID
		}
		m, err := store.CreateMessage(ctx, sender, receiver, content)
		req.NoError(err)
		req.False(m.IsRead)
		ids = append(ids, m.ID)
	}
	unrelated, err := store.CreateMessage(ctx, a.ID, c.ID, "unrelated")
	req.NoError(err)

	all, err := store.GetConversation(ctx, b.ID, a.ID, 10, 0)
	req.NoError(err)
	req.Len(all, 4)
	req.Equal("one", all[0].Content)
	req.Equal("four", all[3].Content)

	latest, err := store.GetConversation(ctx, a.ID, b.ID, 2, 0)
	req.NoError(err)
	req.Len(latest, 2)
	req.Equal("three", latest[0].Content)
	req.Equal("four", latest[1].Content)

	older, err := store.GetConversation(ctx, a.ID, b.ID, 10, ids[2])
	req.NoError(err)
	req.Len(older, 2)
	req.Equal("one", older[0].Content)
	req.Equal("two", older[1].Content)

	_, err = store.GetConversation(ctx, a.ID, b.ID, 10, 12345)
	req.ErrorIs(err, ErrNotFound)

	// A cursor from another conversation is treated as unknown.
	_, err = store.GetConversation(ctx, b.ID, c.ID, 10, unrelated.ID)
	req.ErrorIs(err, ErrNotFound)
	_, err = store.GetConversation(ctx, a.ID, b.ID, 10, unrelated.ID)
	req.ErrorIs(err, ErrNotFound)
}

func TestMarkReadAndConversations(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	a := mustCreateUser(t, store, "alice")
	b := mustCreateUser(t, store, "bob")
	c := mustCreateUser(t, store, "carol")

	for _, content := range []string{"hi", "you there?"} {
		_, err := store.CreateMessage(ctx, b.ID, a.ID, content)
		req.NoError(err)
	}
	_, err := store.CreateMessage(ctx, a.ID, c.ID, "lunch?")
	req.NoError(err)
	_, err = store.CreateMessage(ctx, c.ID, a.ID, "sure")
	req.NoError(err)

	convs, err := store.ListConversations(ctx, a.ID)
	req.NoError(err)
	req.Len(convs, 2)
	req.Equal("carol", convs[0].Counterpart.Username)
	req.Equal("sure", convs[0].LastMessage.Content)
	req.Equal(1, convs[0].UnreadCount)
	req.Equal("bob", convs[1].Counterpart.Username)
	req.Equal(2, convs[1].UnreadCount)

	// Only messages addressed to alice from bob are affected.
	n, err := store.MarkRead(ctx, a.ID, b.ID)
	req.NoError(err)
	req.EqualValues(2, n)

	n, err = store.MarkRead(ctx, a.ID, b.ID)
	req.NoError(err)
	req.EqualValues(0, n)

	convs, err = store.ListConversations(ctx, a.ID)
	req.NoError(err)
	req.Equal(1, convs[0].UnreadCount)
	req.Equal(0, convs[1].UnreadCount)

	fromCarol, err := store.GetConversation(ctx, a.ID, c.ID, 10, 0)
	req.NoError(err)
	req.False(fromCarol[1].IsRead)
}

func TestCreateMessageRejectsEmptyContent(t *testing.T) {
	store := newTestStore(t)
	a := mustCreateUser(t, store, "alice")

	_, err := store.CreateMessage(context.Background(), a.ID, a.ID, "")
	require.Error(t, err)
}

func TestCreateMessageFailure(t *testing.T) {
	req := require.New(t)
	sqlDB, mock, err := sqlmock.New()
	req.NoError(err)
	defer sqlDB.Close()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(int64(3), int64(7), "hi", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	store := New(sqlDB)
	m, err := store.CreateMessage(context.Background(), 3, 7, "hi")
	req.Error(err)
	req.Nil(m)
	req.Contains(err.Error(), "insert message 3->7")
	req.NoError(mock.ExpectationsWereMet())
}

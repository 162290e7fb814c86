package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/users-service/apperror"
	"github.com/user/users-service/testutil"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	d, _ := testutil.OpenInMemoryDB(t)
	return NewSQLStore(d)
}

func newUser(username, email string) *User {
	return &User{
		Username:  username,
		Email:     email,
		Password:  "hash",
		Active:    true,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLStore_CreateAndGet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, newUser("justatest", "test@test.com"))
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := store.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "justatest", got.Username)
	assert.Equal(t, "test@test.com", got.Email)
	assert.Equal(t, "hash", got.Password)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt), "created_at round trip: %v", got.CreatedAt)
}

func TestSQLStore_GetMissing(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.GetUserByID(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, MsgUserNotFound, err.Error())
}

func TestSQLStore_ListInInsertionOrder(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	empty, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"dash", "lily", "matthew"} {
		_, err := store.CreateUser(ctx, newUser(name, name+"@example.com"))
		require.NoError(t, err)
	}

	list, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "dash", list[0].Username)
	assert.Equal(t, "lily", list[1].Username)
	assert.Equal(t, "matthew", list[2].Username)
	assert.Less(t, list[0].ID, list[1].ID)
	assert.Less(t, list[1].ID, list[2].ID)
}

func TestSQLStore_DuplicateEmail(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, newUser("justatest", "test@test.com"))
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, newUser("justatest2", "test@test.com"))
	require.Error(t, err)
	assert.True(t, apperror.IsConflictError(err))
	assert.Equal(t, MsgEmailExists, err.Error())
}

func TestSQLStore_DuplicateUsername(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, newUser("justatest", "test@test.com"))
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, newUser("justatest", "test2@test.com"))
	require.Error(t, err)
	assert.True(t, apperror.IsConflictError(err))
	assert.Equal(t, MsgUsernameExists, err.Error())

	list, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "rejected user must not be stored")
}

func TestConflictFromUniqueViolation_SQLite(t *testing.T) {
	d, _ := testutil.OpenInMemoryDB(t)
	_, err := d.Exec(`INSERT INTO users (username, email, password) VALUES ('dash', 'dash@example.com', 'h')`)
	require.NoError(t, err)

	_, err = d.Exec(`INSERT INTO users (username, email, password) VALUES ('other', 'dash@example.com', 'h')`)
	require.Error(t, err)
	conflict := conflictFromUniqueViolation(err)
	require.NotNil(t, conflict)
	assert.Equal(t, MsgEmailExists, conflict.Message)

	_, err = d.Exec(`INSERT INTO users (username, email, password) VALUES ('dash', 'new@example.com', 'h')`)
	require.Error(t, err)
	conflict = conflictFromUniqueViolation(err)
	require.NotNil(t, conflict)
	assert.Equal(t, MsgUsernameExists, conflict.Message)
}

func TestConflictFromUniqueViolation_OtherErrors(t *testing.T) {
	assert.Nil(t, conflictFromUniqueViolation(errors.New("connection reset")))
}

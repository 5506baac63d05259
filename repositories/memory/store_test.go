package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/jwt-auth-gateway/models"
	"github.com/upb/jwt-auth-gateway/repositories"
)

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Roles().EnsureRoles(ctx, "USER", "ADMIN"))
	users := store.Users()

	t.Run("create and fetch", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, models.NewUser("alice", "hash", []string{"USER"})))

		got, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, []string{"USER"}, got.Roles)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := users.Create(ctx, models.NewUser("alice", "other", nil))
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	t.Run("unknown role", func(t *testing.T) {
		err := users.Create(ctx, models.NewUser("bob", "hash", []string{"GHOST"}))
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		_, err = users.GetByUsername(ctx, "bob")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		got, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		got.Roles[0] = "ADMIN"

		again, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"USER"}, again.Roles)
	})

	t.Run("list is sorted", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, models.NewUser("aaron", "hash", nil)))

		list, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "aaron", list[0].Username)
		assert.Equal(t, []string{}, list[0].Roles)
		assert.Equal(t, "alice", list[1].Username)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := users.GetByUsername(cctx, "alice")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStore_Roles(t *testing.T) {
	ctx := context.Background()
	roles := NewStore().Roles()

	require.NoError(t, roles.EnsureRoles(ctx, "USER", "ADMIN"))
	require.NoError(t, roles.EnsureRoles(ctx, "ADMIN"))

	all, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ADMIN", all[0].Name)
	assert.Equal(t, int64(2), all[0].ID)

	found, err := roles.FindByNames(ctx, []string{"USER", "GHOST", "USER"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "USER", found[0].Name)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- users.Create(ctx, models.NewUser(fmt.Sprintf("u%d", i%5), "hash", nil))
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, repositories.ErrDuplicate):
			dup++
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, dup)
}

func TestTransactionManager(t *testing.T) {
	tm := NewTransactionManager()
	ctx := context.Background()

	called := false
	err := tm.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		called = true
		assert.Equal(t, ctx, tx.Context())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	boom := assert.AnError
	err = tm.InTransaction(ctx, func(context.Context, repositories.Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeeder_Seed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.repos.Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, admin.Roles)

	user, err := f.repos.Users.GetByUsername(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, user.Roles)
	assert.NoError(t, f.hasher.Compare(user.PasswordHash, "userpassword"))

	t.Run("running again changes nothing", func(t *testing.T) {
		seeder := NewSeeder(f.repos, f.txMgr, f.hasher, zap.NewNop())
		require.NoError(t, seeder.Seed(ctx, DefaultSeedRoles(), DefaultSeedAccounts()))

		again, err := f.repos.Users.GetByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, again.ID)

		roles, err := f.repos.Roles.List(ctx)
		require.NoError(t, err)
		assert.Len(t, roles, 2)

		users, err := f.repos.Users.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("account with an unseeded role fails", func(t *testing.T) {
		seeder := NewSeeder(f.repos, f.txMgr, f.hasher, zap.NewNop())
		err := seeder.Seed(ctx, nil, []SeedAccount{{Username: "ops", Password: "opspassword", Roles: []string{"OPS"}}})
		assert.True(t, IsInternalError(err))
	})
}

package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/repo/repotest"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(repotest.NewDB(t))
}

func seedUser(t *testing.T, r *GormRepo, username string, verified bool) *models.User {
	t.Helper()

	expires := time.Now().UTC().Add(15 * time.Minute)
	u := &models.User{
		Username:              username,
		Email:                 username + "@example.com",
		PasswordHash:          "hash",
		Role:                  models.RoleUser,
		VerificationCode:      "ABCD1234",
		VerificationExpiresAt: &expires,
	}
	require.NoError(t, r.RegisterUser(context.Background(), u))
	if verified {
		require.NoError(t, r.MarkVerified(context.Background(), u.ID))
	}
	return u
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, r, "alice", false)
	assert.NotEmpty(t, u.ID)

	got, err := r.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.Verified)
	assert.Equal(t, "ABCD1234", got.VerificationCode)

	_, err = r.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, autherr.ErrIdentityNotFound)
}

func TestRegisterUser_ReplacesUnverified(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	old := seedUser(t, r, "alice", false)
	require.NoError(t, r.SaveTokenPair(ctx, &models.TokenPair{
		UserID: old.ID, AccessToken: "a", RefreshToken: "r", RefreshExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	fresh := seedUser(t, r, "alice", false)
	assert.NotEqual(t, old.ID, fresh.ID)

	got, err := r.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	assert.Zero(t, repotest.CountPairs(t, r.DB))
}

func TestRegisterUser_VerifiedConflict(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	seedUser(t, r, "alice", true)

	err := r.RegisterUser(context.Background(), &models.User{Username: "alice", Email: "a@example.com", PasswordHash: "x", Role: models.RoleUser})
	assert.ErrorIs(t, err, autherr.ErrAlreadyRegistered)
}

// A registration for the same username that commits between our lookup and
// our insert surfaces as a unique violation, which must read as a conflict.
func TestRegisterUser_LostInsertRace(t *testing.T) {
	t.Parallel()

	db := repotest.NewDB(t)
	r := New(db)

	raced := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:concurrent_register", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "users" {
			return
		}
		raced = true
		now := time.Now().UTC()
		other := &models.User{
			ID:           uuid.New(),
			Username:     "zoe",
			Email:        "other@example.com",
			PasswordHash: "hash",
			Role:         models.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		tx.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Create(other)
	}))

	err := r.RegisterUser(context.Background(), &models.User{
		Username:     "zoe",
		Email:        "zoe@example.com",
		PasswordHash: "x",
		Role:         models.RoleUser,
	})
	require.True(t, raced)
	assert.ErrorIs(t, err, autherr.ErrAlreadyRegistered)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestVerificationUpdates(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "bob", false)

	newExp := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, r.SetVerificationCode(ctx, u.ID, "ZZZZ9999", newExp))

	got, err := r.FindUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "ZZZZ9999", got.VerificationCode)
	require.NotNil(t, got.VerificationExpiresAt)
	assert.WithinDuration(t, newExp, *got.VerificationExpiresAt, time.Second)

	require.NoError(t, r.MarkVerified(ctx, u.ID))
	got, err = r.FindUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Empty(t, got.VerificationCode)
	assert.Nil(t, got.VerificationExpiresAt)

	assert.ErrorIs(t, r.MarkVerified(ctx, u.ID), autherr.ErrAlreadyVerified)
	assert.ErrorIs(t, r.SetVerificationCode(ctx, u.ID, "X", newExp), autherr.ErrAlreadyVerified)
}

func TestSetRoleAndList(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", true)
	seedUser(t, r, "u2", true)
	seedUser(t, r, "u3", false)

	require.NoError(t, r.SetRole(ctx, "u2", models.RoleAdmin))
	assert.ErrorIs(t, r.SetRole(ctx, "ghost", models.RoleAdmin), autherr.ErrIdentityNotFound)

	users, total, err := r.ListUsers(ctx, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, users, 2)

	users, _, err = r.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)

	u2, err := r.FindUserByUsername(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u2.Role)
}

func TestTokenPairLifecycle(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "carol", true)
	exp := time.Now().UTC().Add(24 * time.Hour)

	_, err := r.FindTokenPair(ctx, u.ID)
	assert.ErrorIs(t, err, autherr.ErrSessionNotFound)
	assert.ErrorIs(t, r.ReplaceAccessToken(ctx, u.ID, "r1", "a2"), autherr.ErrSessionNotFound)

	require.NoError(t, r.SaveTokenPair(ctx, &models.TokenPair{UserID: u.ID, AccessToken: "a1", RefreshToken: "r1", RefreshExpiresAt: exp}))
	require.NoError(t, r.SaveTokenPair(ctx, &models.TokenPair{UserID: u.ID, AccessToken: "a9", RefreshToken: "r9", RefreshExpiresAt: exp}))
	assert.EqualValues(t, 1, repotest.CountPairs(t, r.DB))

	pair, err := r.FindTokenPair(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a9", pair.AccessToken)
	assert.Equal(t, "r9", pair.RefreshToken)

	assert.ErrorIs(t, r.ReplaceAccessToken(ctx, u.ID, "r1", "stale"), autherr.ErrSessionNotFound)
	require.NoError(t, r.ReplaceAccessToken(ctx, u.ID, "r9", "a10"))

	pair, err = r.FindTokenPair(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a10", pair.AccessToken)
	assert.Equal(t, "r9", pair.RefreshToken)

	require.NoError(t, r.DeleteTokenPair(ctx, u.ID))
	require.NoError(t, r.DeleteTokenPair(ctx, u.ID))
	assert.Zero(t, repotest.CountPairs(t, r.DB))
}

func TestCleanupQueries(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live := seedUser(t, r, "live", true)
	gone := seedUser(t, r, "gone", true)
	require.NoError(t, r.SaveTokenPair(ctx, &models.TokenPair{UserID: live.ID, AccessToken: "a", RefreshToken: "r", RefreshExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, r.SaveTokenPair(ctx, &models.TokenPair{UserID: gone.ID, AccessToken: "b", RefreshToken: "s", RefreshExpiresAt: now.Add(-time.Hour)}))

	n, err := r.DeleteExpiredTokenPairs(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = r.FindTokenPair(ctx, live.ID)
	assert.NoError(t, err)

	stale := seedUser(t, r, "stale", false)
	past := now.Add(-48 * time.Hour)
	require.NoError(t, r.SetVerificationCode(ctx, stale.ID, "OLD00000", past))
	seedUser(t, r, "pending", false)

	n, err = r.DeleteStaleUnverified(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.FindUserByUsername(ctx, "stale")
	assert.ErrorIs(t, err, autherr.ErrIdentityNotFound)
	_, err = r.FindUserByUsername(ctx, "pending")
	assert.NoError(t, err)
}

package tests

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
	"github.com/Skotchmaster/shop_auth/pkg/db"
	"github.com/Skotchmaster/shop_auth/pkg/mail"
	"github.com/Skotchmaster/shop_auth/pkg/tokens"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/services/auth/internal/service"
)

type codeMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *codeMailer) SendVerificationCode(_ context.Context, _ string, vc mail.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[vc.Username] = vc.Code
	return nil
}

func (m *codeMailer) code(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[username]
}

type integrationEnv struct {
	db     *gorm.DB
	svc    *service.AuthService
	rp     *repo.GormRepo
	mailer *codeMailer
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("AUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTH_TEST_DATABASE_URL is required for tests")
	}

	gdb, err := db.Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(gdb))

	codec, err := tokens.NewCodec(tokens.Config{
		Secret: []byte("integration-secret-0123456789abcdef"),
	})
	require.NoError(t, err)

	rp := repo.New(gdb)
	mailer := &codeMailer{codes: map[string]string{}}
	env := &integrationEnv{
		db:     gdb,
		rp:     rp,
		mailer: mailer,
		svc: service.New(service.Deps{
			Users:    rp,
			Sessions: rp,
			Codec:    codec,
			Mailer:   mailer,
		}),
	}

	t.Cleanup(func() {
		truncateTables(t, gdb)
		_ = db.Close(gdb)
	})

	return env
}

func truncateTables(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	gdb.Exec("TRUNCATE TABLE token_pairs, users RESTART IDENTITY CASCADE")
}

func uniqueUsername() string {
	return "u_" + uuid.NewString()
}

func (e *integrationEnv) signUp(t *testing.T, username string) *service.SessionTokens {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.svc.Register(ctx, service.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "Secret123",
	}))
	res, err := e.svc.VerifyRegistration(ctx, username, e.mailer.code(username))
	require.NoError(t, err)
	return res
}

func TestAuthService_Register_SuccessAndConflict(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()

	env.signUp(t, username)

	err := env.svc.Register(ctx, service.RegisterRequest{Username: username, Email: "x@example.com", Password: "Secret123"})
	assert.ErrorIs(t, err, autherr.ErrAlreadyRegistered)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()
	env.signUp(t, username)

	_, err := env.svc.Login(ctx, username, "Wrong1234")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, err = env.svc.Login(ctx, uniqueUsername(), "Secret123")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	res, err := env.svc.Login(ctx, username, "Secret123")
	require.NoError(t, err)
	assert.True(t, env.svc.ValidateTokenPair(ctx, res.AccessToken, res.RefreshToken))
}

func TestAuthService_ConcurrentRotation(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	res := env.signUp(t, uniqueUsername())

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.svc.RotateAccessToken(ctx, res.RefreshToken)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, env.db.Model(&models.TokenPair{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAuthService_LogoutThenRotate(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()
	res := env.signUp(t, username)

	require.NoError(t, env.svc.Logout(ctx, username))
	require.NoError(t, env.svc.Logout(ctx, username))

	_, err := env.svc.RotateAccessToken(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrSessionNotFound)

	n, err := env.rp.DeleteExpiredTokenPairs(ctx, time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

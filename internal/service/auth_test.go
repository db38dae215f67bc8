package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/hypnohub/internal/auth"
	"github.com/geocoder89/hypnohub/internal/domain/user"
	"github.com/geocoder89/hypnohub/internal/repo/memory"
	"github.com/geocoder89/hypnohub/internal/security"
	"github.com/geocoder89/hypnohub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newAuthService(t *testing.T) (*service.AuthService, *memory.UsersRepo, *auth.Manager) {
	t.Helper()

	users := memory.NewUsersRepo()
	tokens := auth.NewManager("test-secret", time.Hour)
	svc := service.NewAuthService(users, security.BcryptHasher{Cost: bcrypt.MinCost}, tokens, quietLogger())

	return svc, users, tokens
}

func TestAuthService_Register(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	view, err := svc.Register(ctx, service.RegisterInput{Name: "  Jane  ", Email: " Jane@Example.COM ", Password: "Strong1!"})
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "Jane", view.Name)
	assert.Equal(t, "jane@example.com", view.Email)
	assert.Equal(t, user.RoleUser, view.Role)

	stored, err := users.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Strong1!", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Strong1!")))
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "Strong1!"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, service.RegisterInput{Name: "Jane 2", Email: "JANE@example.com", Password: "Other1!x"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestAuthService_Login(t *testing.T) {
	svc, _, tokens := newAuthService(t)
	ctx := context.Background()

	view, err := svc.Register(ctx, service.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "Strong1!"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "Jane@example.com", "Strong1!")
	require.NoError(t, err)

	assert.Equal(t, view.ID, res.User.ID)
	assert.Equal(t, "jane@example.com", res.User.Email)
	assert.Equal(t, user.RoleUser, res.User.Role)

	claims, err := tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, view.ID, claims.UserID())
	assert.Equal(t, "USER", claims.Role)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "Strong1!"})
	require.NoError(t, err)

	_, errWrongPassword := svc.Login(ctx, "jane@example.com", "wrong")
	_, errUnknownEmail := svc.Login(ctx, "nobody@example.com", "Strong1!")

	assert.ErrorIs(t, errWrongPassword, service.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, service.ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())
}

type failingUserStore struct{ err error }

func (f failingUserStore) Create(context.Context, user.User) (user.User, error) { return user.User{}, f.err }
func (f failingUserStore) GetByEmail(context.Context, string) (user.User, error) {
	return user.User{}, f.err
}
func (f failingUserStore) GetByID(context.Context, string) (user.User, error) { return user.User{}, f.err }

func TestAuthService_LoginStoreErrorIsNotCredentials(t *testing.T) {
	boom := errors.New("connection refused")
	svc := service.NewAuthService(failingUserStore{err: boom}, security.NewBcryptHasher(), auth.NewManager("s", time.Hour), quietLogger())

	_, err := svc.Login(context.Background(), "jane@example.com", "Strong1!")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_Me(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	view, err := svc.Register(ctx, service.RegisterInput{Name: "Jane", Email: "jane@example.com", Password: "Strong1!"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view, me)

	_, err = svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", "", ""))

	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "Admin@Example.com", "Admin123!"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "admin@example.com", "Admin123!"))

	admin, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.Equal(t, "Root", admin.Name)
}

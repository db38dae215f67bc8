package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/hypnohub/internal/domain/user"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginUser struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Role  user.Role `json:"role"`
}

type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	User        LoginUser `json:"user"`
}

type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user.PublicView, error) {
	u, err := s.create(ctx, in, user.RoleUser)
	if err != nil {
		return user.PublicView{}, err
	}

	s.log.InfoContext(ctx, "user_registered", "user_id", u.ID)
	return u.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return LoginResult{}, oops.Code("TOKEN_ISSUE_FAILED").With("user_id", u.ID).Wrap(err)
	}

	return LoginResult{
		AccessToken: token,
		User: LoginUser{
			ID:    u.ID,
			Email: u.Email,
			Role:  u.Role,
		},
	}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (user.PublicView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return user.PublicView{}, err
	}
	return u.Public(), nil
}

// EnsureAdmin creates an admin account unless the email is already registered.
// Blank credentials disable seeding.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}

	u, err := s.create(ctx, RegisterInput{Name: name, Email: email, Password: password}, user.RoleAdmin)
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return oops.Code("ADMIN_SEED_FAILED").With("email", user.NormalizeEmail(email)).Wrap(err)
	}

	s.log.InfoContext(ctx, "admin_seeded", "user_id", u.ID)
	return nil
}

func (s *AuthService) create(ctx context.Context, in RegisterInput, role user.Role) (user.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	return s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        user.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
	})
}

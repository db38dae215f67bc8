package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/hypnohub/internal/domain/user"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool Pool
	prom *observability.Prom
}

func NewUsersRepo(pool Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

// Create inserts u. The unique index on email is the only duplicate check.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	err := r.prom.ObserveDB("users.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (id, name, email, password_hash, role)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at`,
			u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		).Scan(&u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, oops.Code("USER_CREATE_FAILED").With("email", u.Email).Wrap(err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email",
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1`,
		user.NormalizeEmail(email),
	)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id",
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1`,
		id,
	)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg string) (user.User, error) {
	var (
		u    user.User
		role string
	)

	err := r.prom.ObserveDB(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&role,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, oops.Code("USER_LOOKUP_FAILED").With("op", op).Wrap(err)
	}

	u.Role = user.Role(role)
	if !u.Role.IsValid() {
		return user.User{}, oops.Code("USER_ROLE_INVALID").With("op", op).With("user_id", u.ID).Errorf("unknown role %q", role)
	}
	return u, nil
}

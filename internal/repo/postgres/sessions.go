package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/session"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// SessionsRepo keeps each session script as a JSONB document. Ids and
// timestamps live in their own columns.
type SessionsRepo struct {
	pool Pool
	prom *observability.Prom
}

func NewSessionsRepo(pool Pool, prom *observability.Prom) *SessionsRepo {
	return &SessionsRepo{pool: pool, prom: prom}
}

const sessionColumns = `id, doc, created_at, updated_at`

func (r *SessionsRepo) Create(ctx context.Context, s session.Session) (session.Session, error) {
	doc, err := json.Marshal(s.Script)
	if err != nil {
		return session.Session{}, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	var out session.Session
	err = r.prom.ObserveDB("sessions.create", func() error {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO sessions (id, doc, created_at, updated_at)
			VALUES ($1, $2::jsonb, $3, $4)
			RETURNING `+sessionColumns,
			s.ID, doc, s.CreatedAt, s.UpdatedAt,
		)
		var scanErr error
		out, scanErr = scanSession(row)
		return scanErr
	})

	if err != nil {
		return session.Session{}, oops.Code("SESSION_CREATE_FAILED").With("session_id", s.ID).Wrap(err)
	}
	return out, nil
}

func (r *SessionsRepo) List(ctx context.Context) ([]session.Session, error) {
	return r.list(ctx, "sessions.list",
		`SELECT `+sessionColumns+` FROM sessions
		ORDER BY created_at DESC, id DESC`,
	)
}

func (r *SessionsRepo) ListByGoalID(ctx context.Context, goalID string) ([]session.Session, error) {
	return r.list(ctx, "sessions.list_by_goal",
		`SELECT `+sessionColumns+` FROM sessions
		WHERE doc -> 'goal' ->> 'id' = $1
		ORDER BY created_at DESC, id DESC`,
		goalID,
	)
}

// ListByTags matches sessions carrying any of tags.
func (r *SessionsRepo) ListByTags(ctx context.Context, tags []string) ([]session.Session, error) {
	return r.list(ctx, "sessions.list_by_tags",
		`SELECT `+sessionColumns+` FROM sessions
		WHERE doc -> 'tags' ?| $1::text[]
		ORDER BY created_at DESC, id DESC`,
		tags,
	)
}

func (r *SessionsRepo) GetByID(ctx context.Context, id string) (session.Session, error) {
	var out session.Session

	err := r.prom.ObserveDB("sessions.get", func() error {
		var scanErr error
		out, scanErr = scanSession(r.pool.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, oops.Code("SESSION_LOOKUP_FAILED").With("session_id", id).Wrap(err)
	}
	return out, nil
}

// Update merges the provided top-level fields into the stored document in a
// single statement.
func (r *SessionsRepo) Update(ctx context.Context, id string, p session.Patch) (session.Session, error) {
	fields, err := json.Marshal(p.Fields())
	if err != nil {
		return session.Session{}, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	var out session.Session
	err = r.prom.ObserveDB("sessions.update", func() error {
		var scanErr error
		out, scanErr = scanSession(r.pool.QueryRow(ctx,
			`UPDATE sessions
			SET doc = doc || $2::jsonb, updated_at = NOW()
			WHERE id = $1
			RETURNING `+sessionColumns,
			id, fields,
		))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, oops.Code("SESSION_UPDATE_FAILED").With("session_id", id).Wrap(err)
	}
	return out, nil
}

func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.prom.ObserveDB("sessions.delete", func() error {
		tag, execErr := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return execErr
	})

	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("session_id", id).Wrap(err)
	}

	// if no rows were deleted the id was unknown
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionsRepo) list(ctx context.Context, op, query string, args ...any) ([]session.Session, error) {
	out := []session.Session{}

	err := r.prom.ObserveDB(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("op", op).Wrap(err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (session.Session, error) {
	var (
		s         session.Session
		doc       []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&s.ID, &doc, &createdAt, &updatedAt); err != nil {
		return session.Session{}, err
	}

	if err := json.Unmarshal(doc, &s.Script); err != nil {
		return session.Session{}, oops.Code("SESSION_DECODE_FAILED").With("session_id", s.ID).Wrap(err)
	}

	s.CreatedAt = createdAt.UTC()
	s.UpdatedAt = updatedAt.UTC()
	return s, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/session"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{"id", "doc", "created_at", "updated_at"}

func testScript(tags ...string) session.Script {
	return session.Script{
		Goal:      session.Goal{ID: "goal-1", Text: "Sleep better"},
		Induction: session.Induction{Technique: "eye_fixation", Duration: 4},
		Deepening: session.Deepening{Method: "elevator", Duration: 3},
		WorkingPhase: session.WorkingPhase{
			Techniques: []session.Technique{{ID: "tech-1", Name: "Anchor", Duration: 5}},
		},
		Integration: session.Integration{Method: "rehearsal"},
		Emergence:   session.Emergence{Pace: "quick", Focus: "count", EnergyState: "alert"},
		Tags:        tags,
	}
}

func docBytes(t *testing.T, s session.Script) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

func TestSessionsRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	s := session.Session{ID: "sess-1", Script: testScript("sleep"), CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`INSERT INTO sessions`).
		WithArgs("sess-1", pgxmock.AnyArg(), now, now).
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("sess-1", docBytes(t, s.Script), now, now))

	got, err := NewSessionsRepo(mock, nil).Create(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "goal-1", got.Goal.ID)
	assert.Equal(t, []string{"sleep"}, got.Tags)
	assert.Equal(t, now, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsRepo_List(t *testing.T) {
	tests := []struct {
		name      string
		call      func(r *SessionsRepo) ([]session.Session, error)
		setupMock func(t *testing.T, mock pgxmock.PgxPoolIface)
		wantIDs   []string
		wantErr   bool
	}{
		{
			name: "all newest first",
			call: func(r *SessionsRepo) ([]session.Session, error) { return r.List(context.Background()) },
			setupMock: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				now := time.Now().UTC()
				mock.ExpectQuery(`SELECT (.+) FROM sessions\s+ORDER BY created_at DESC`).
					WillReturnRows(pgxmock.NewRows(sessionCols).
						AddRow("b", docBytes(t, testScript()), now, now).
						AddRow("a", docBytes(t, testScript()), now.Add(-time.Hour), now))
			},
			wantIDs: []string{"b", "a"},
		},
		{
			name: "by goal",
			call: func(r *SessionsRepo) ([]session.Session, error) {
				return r.ListByGoalID(context.Background(), "goal-1")
			},
			setupMock: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				now := time.Now().UTC()
				mock.ExpectQuery(`WHERE doc -> 'goal' ->> 'id' = \$1`).
					WithArgs("goal-1").
					WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("a", docBytes(t, testScript()), now, now))
			},
			wantIDs: []string{"a"},
		},
		{
			name: "by tags",
			call: func(r *SessionsRepo) ([]session.Session, error) {
				return r.ListByTags(context.Background(), []string{"sleep", "calm"})
			},
			setupMock: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`WHERE doc -> 'tags' \?\| \$1::text\[\]`).
					WithArgs([]string{"sleep", "calm"}).
					WillReturnRows(pgxmock.NewRows(sessionCols))
			},
			wantIDs: []string{},
		},
		{
			name: "query error",
			call: func(r *SessionsRepo) ([]session.Session, error) { return r.List(context.Background()) },
			setupMock: func(t *testing.T, mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM sessions`).WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(t, mock)

			got, err := tt.call(NewSessionsRepo(mock, nil))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection reset")
			} else {
				require.NoError(t, err)
				gotIDs := make([]string, 0, len(got))
				for _, s := range got {
					gotIDs = append(gotIDs, s.ID)
				}
				assert.Equal(t, tt.wantIDs, gotIDs)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionsRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewSessionsRepo(mock, nil).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsRepo_UpdateSendsOnlyProvidedFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rating := 8
	patch := session.Patch{EffectivenessRating: &rating}
	wantFields, err := json.Marshal(patch.Fields())
	require.NoError(t, err)

	merged := testScript()
	merged.EffectivenessRating = &rating
	now := time.Now().UTC()

	mock.ExpectQuery(`SET doc = doc \|\| \$2::jsonb`).
		WithArgs("sess-1", wantFields).
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("sess-1", docBytes(t, merged), now, now))

	got, err := NewSessionsRepo(mock, nil).Update(context.Background(), "sess-1", patch)
	require.NoError(t, err)
	require.NotNil(t, got.EffectivenessRating)
	assert.Equal(t, 8, *got.EffectivenessRating)
	assert.Equal(t, "goal-1", got.Goal.ID)
	assert.JSONEq(t, `{"effectivenessRating":8}`, string(wantFields))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsRepo_UpdateMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`UPDATE sessions`).
		WithArgs("missing", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	rating := 2
	_, err = NewSessionsRepo(mock, nil).Update(context.Background(), "missing", session.Patch{EffectivenessRating: &rating})
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewSessionsRepo(mock, nil)
	require.NoError(t, repo.Delete(context.Background(), "sess-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "sess-1"), session.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

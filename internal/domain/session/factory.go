package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalize fills the identifiers a client is allowed to omit: the goal id
// and every technique id. Supplied ids are kept as-is. It runs once, before
// the script is persisted, and never on update.
func Normalize(s Script) (Script, error) {
	if len(s.WorkingPhase.Techniques) == 0 {
		return Script{}, ErrNoTechniques
	}

	s.Goal.Text = strings.TrimSpace(s.Goal.Text)
	if s.Goal.Text == "" {
		return Script{}, ErrBlankGoal
	}
	if strings.TrimSpace(s.Goal.ID) == "" {
		s.Goal.ID = uuid.NewString()
	}

	// copy so the caller's slice is never mutated
	techniques := make([]Technique, len(s.WorkingPhase.Techniques))
	copy(techniques, s.WorkingPhase.Techniques)

	for i := range techniques {
		if strings.TrimSpace(techniques[i].ID) == "" {
			techniques[i].ID = uuid.NewString()
		}
	}
	s.WorkingPhase.Techniques = techniques

	return s, nil
}

// New stamps a script with a fresh id and timestamps. Stores that let the
// database own timestamps overwrite CreatedAt/UpdatedAt from their RETURNING.
func New(s Script) Session {
	now := time.Now().UTC()

	return Session{
		ID:        uuid.NewString(),
		Script:    s,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

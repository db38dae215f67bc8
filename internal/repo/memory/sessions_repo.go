package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/session"
)

type SessionsRepo struct {
	mu    sync.RWMutex
	items map[string]session.Session
}

func NewSessionsRepo() *SessionsRepo {
	return &SessionsRepo{
		items: make(map[string]session.Session),
	}
}

func (r *SessionsRepo) Create(_ context.Context, s session.Session) (session.Session, error) {
	r.mu.Lock()
	r.items[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

func (r *SessionsRepo) List(_ context.Context) ([]session.Session, error) {
	return r.filter(func(session.Session) bool { return true }), nil
}

func (r *SessionsRepo) GetByID(_ context.Context, id string) (session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (r *SessionsRepo) Update(_ context.Context, id string, p session.Patch) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}

	p.ApplyTo(&s.Script)
	s.UpdatedAt = time.Now().UTC()
	r.items[id] = s

	return s, nil
}

func (r *SessionsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return session.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *SessionsRepo) ListByGoalID(_ context.Context, goalID string) ([]session.Session, error) {
	return r.filter(func(s session.Session) bool { return s.Goal.ID == goalID }), nil
}

func (r *SessionsRepo) ListByTags(_ context.Context, tags []string) ([]session.Session, error) {
	return r.filter(func(s session.Session) bool {
		for _, t := range s.Tags {
			if slices.Contains(tags, t) {
				return true
			}
		}
		return false
	}), nil
}

// filter returns matches newest first.
func (r *SessionsRepo) filter(keep func(session.Session) bool) []session.Session {
	r.mu.RLock()
	out := make([]session.Session, 0, len(r.items))
	for _, s := range r.items {
		if keep(s) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

package service

import (
	"context"
	"strings"

	"github.com/geocoder89/hypnohub/internal/domain/session"
)

type SessionStore interface {
	Create(ctx context.Context, s session.Session) (session.Session, error)
	List(ctx context.Context) ([]session.Session, error)
	GetByID(ctx context.Context, id string) (session.Session, error)
	Update(ctx context.Context, id string, p session.Patch) (session.Session, error)
	Delete(ctx context.Context, id string) error
	ListByGoalID(ctx context.Context, goalID string) ([]session.Session, error)
	ListByTags(ctx context.Context, tags []string) ([]session.Session, error)
}

type SuggestionsService struct {
	store SessionStore
}

func NewSuggestionsService(store SessionStore) *SuggestionsService {
	return &SuggestionsService{store: store}
}

func (s *SuggestionsService) Create(ctx context.Context, script session.Script) (session.Envelope[session.Session], error) {
	normalized, err := session.Normalize(script)
	if err != nil {
		return session.Envelope[session.Session]{}, err
	}

	created, err := s.store.Create(ctx, session.New(normalized))
	if err != nil {
		return session.Envelope[session.Session]{}, err
	}

	return session.Envelope[session.Session]{
		Success: true,
		Message: "Session created successfully",
		Data:    created,
	}, nil
}

func (s *SuggestionsService) FindAll(ctx context.Context) (session.ListEnvelope[session.Session], error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return session.ListEnvelope[session.Session]{}, err
	}
	return listEnvelope("Sessions retrieved successfully", items), nil
}

func (s *SuggestionsService) FindOne(ctx context.Context, id string) (session.Session, error) {
	return s.store.GetByID(ctx, id)
}

// Update merges the patch into the stored session. Goal text is trimmed and
// must stay non-blank; nested ids are stored as supplied.
func (s *SuggestionsService) Update(ctx context.Context, id string, p session.Patch) (session.Session, error) {
	if p.IsEmpty() {
		return s.store.GetByID(ctx, id)
	}

	p, err := p.Normalize()
	if err != nil {
		return session.Session{}, err
	}
	return s.store.Update(ctx, id, p)
}

func (s *SuggestionsService) Remove(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *SuggestionsService) FindByGoalID(ctx context.Context, goalID string) (session.ListEnvelope[session.Session], error) {
	items, err := s.store.ListByGoalID(ctx, strings.TrimSpace(goalID))
	if err != nil {
		return session.ListEnvelope[session.Session]{}, err
	}
	return listEnvelope("Sessions for goal retrieved successfully", items), nil
}

func (s *SuggestionsService) FindByTags(ctx context.Context, tags []string) (session.ListEnvelope[session.Session], error) {
	cleaned := CleanTags(tags)
	if len(cleaned) == 0 {
		return listEnvelope("Sessions for tags retrieved successfully", nil), nil
	}

	items, err := s.store.ListByTags(ctx, cleaned)
	if err != nil {
		return session.ListEnvelope[session.Session]{}, err
	}
	return listEnvelope("Sessions for tags retrieved successfully", items), nil
}

// CleanTags trims, drops blanks and de-duplicates while keeping order.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func listEnvelope(msg string, items []session.Session) session.ListEnvelope[session.Session] {
	if items == nil {
		items = []session.Session{}
	}
	return session.ListEnvelope[session.Session]{
		Success: true,
		Message: msg,
		Data:    items,
		Total:   len(items),
	}
}

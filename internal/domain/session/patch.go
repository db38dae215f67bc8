package session

import "strings"

// Patch is a partial update: every non-nil field replaces the whole
// top-level field of the stored document, nothing else is touched.
type Patch struct {
	Goal                *Goal         `json:"goal"`
	Induction           *Induction    `json:"induction"`
	Deepening           *Deepening    `json:"deepening"`
	WorkingPhase        *WorkingPhase `json:"workingPhase"`
	Integration         *Integration  `json:"integration"`
	Emergence           *Emergence    `json:"emergence"`
	Duration            *int          `json:"duration" binding:"omitempty,min=0"`
	EffectivenessRating *int          `json:"effectivenessRating" binding:"omitempty,min=1,max=10"`
	Tags                []string      `json:"tags" binding:"omitempty,dive,required"`
}

// Fields returns the provided fields keyed by their document name.
func (p Patch) Fields() map[string]any {
	out := make(map[string]any, 9)

	if p.Goal != nil {
		out["goal"] = *p.Goal
	}
	if p.Induction != nil {
		out["induction"] = *p.Induction
	}
	if p.Deepening != nil {
		out["deepening"] = *p.Deepening
	}
	if p.WorkingPhase != nil {
		out["workingPhase"] = *p.WorkingPhase
	}
	if p.Integration != nil {
		out["integration"] = *p.Integration
	}
	if p.Emergence != nil {
		out["emergence"] = *p.Emergence
	}
	if p.Duration != nil {
		out["duration"] = *p.Duration
	}
	if p.EffectivenessRating != nil {
		out["effectivenessRating"] = *p.EffectivenessRating
	}
	if p.Tags != nil {
		out["tags"] = p.Tags
	}

	return out
}

// Normalize trims the goal text of a patch that replaces the goal.
func (p Patch) Normalize() (Patch, error) {
	if p.Goal == nil {
		return p, nil
	}

	g := *p.Goal
	g.Text = strings.TrimSpace(g.Text)
	if g.Text == "" {
		return Patch{}, ErrBlankGoal
	}
	p.Goal = &g

	return p, nil
}

func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// ApplyTo merges the patch into s in place.
func (p Patch) ApplyTo(s *Script) {
	if p.Goal != nil {
		s.Goal = *p.Goal
	}
	if p.Induction != nil {
		s.Induction = *p.Induction
	}
	if p.Deepening != nil {
		s.Deepening = *p.Deepening
	}
	if p.WorkingPhase != nil {
		s.WorkingPhase = *p.WorkingPhase
	}
	if p.Integration != nil {
		s.Integration = *p.Integration
	}
	if p.Emergence != nil {
		s.Emergence = *p.Emergence
	}
	if p.Duration != nil {
		d := *p.Duration
		s.Duration = &d
	}
	if p.EffectivenessRating != nil {
		r := *p.EffectivenessRating
		s.EffectivenessRating = &r
	}
	if p.Tags != nil {
		s.Tags = append([]string(nil), p.Tags...)
	}
}

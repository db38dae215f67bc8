package session

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrNoTechniques = errors.New("workingPhase.techniques must contain at least one technique")
	ErrBlankGoal    = errors.New("goal.text must not be blank")
)

type Goal struct {
	ID   string `json:"id" bson:"id" binding:"omitempty,max=100"`
	Text string `json:"text" bson:"text" binding:"required,notblank"`
}

type Induction struct {
	Technique string `json:"technique" bson:"technique" binding:"required,oneof=progressive_relaxation eye_fixation breathing_focus"`
	Duration  int    `json:"duration" bson:"duration" binding:"required,min=1,max=15"`
}

type Deepening struct {
	Method               string `json:"method" bson:"method" binding:"required,oneof=countdown visualization staircase elevator"`
	Duration             int    `json:"duration" bson:"duration" binding:"required,min=1,max=10"`
	VisualizationDetails string `json:"visualizationDetails,omitempty" bson:"visualizationDetails,omitempty"`
}

type Technique struct {
	ID             string   `json:"id" bson:"id" binding:"omitempty,max=100"`
	Name           string   `json:"name" bson:"name" binding:"required,min=3,max=50"`
	Affirmations   []string `json:"affirmations,omitempty" bson:"affirmations,omitempty"`
	Visualizations []string `json:"visualizations,omitempty" bson:"visualizations,omitempty"`
	Duration       int      `json:"duration" bson:"duration" binding:"required,min=1,max=20"`
}

type WorkingPhase struct {
	Techniques      []Technique `json:"techniques" bson:"techniques" binding:"required,min=1,dive"`
	SuggestionsUsed []string    `json:"suggestionsUsed,omitempty" bson:"suggestionsUsed,omitempty"`
}

type IntegrationConfiguration struct {
	AnchorTrigger  string `json:"anchorTrigger,omitempty" bson:"anchorTrigger,omitempty"`
	SymbolicObject string `json:"symbolicObject,omitempty" bson:"symbolicObject,omitempty"`
}

type Integration struct {
	Method        string                   `json:"method" bson:"method" binding:"required,oneof=future_pacing rehearsal anchoring symbolic_bridge"`
	Configuration IntegrationConfiguration `json:"configuration" bson:"configuration"`
}

type Emergence struct {
	Pace         string `json:"pace" bson:"pace" binding:"required,oneof=gradual balanced quick"`
	Focus        string `json:"focus" bson:"focus" binding:"required,oneof=body count environment"`
	EnergyState  string `json:"energyState" bson:"energyState" binding:"required,oneof=calm alert balanced"`
	NextActivity string `json:"nextActivity,omitempty" bson:"nextActivity,omitempty"`
	Duration     *int   `json:"duration,omitempty" bson:"duration,omitempty" binding:"omitempty,min=1,max=10"`
}

// Script is the client-authored part of a session: everything except the
// store-owned id and timestamps. It doubles as the create request body.
type Script struct {
	Goal                Goal         `json:"goal" bson:"goal"`
	Induction           Induction    `json:"induction" bson:"induction"`
	Deepening           Deepening    `json:"deepening" bson:"deepening"`
	WorkingPhase        WorkingPhase `json:"workingPhase" bson:"workingPhase"`
	Integration         Integration  `json:"integration" bson:"integration"`
	Emergence           Emergence    `json:"emergence" bson:"emergence"`
	Duration            *int         `json:"duration,omitempty" bson:"duration,omitempty" binding:"omitempty,min=0"`
	EffectivenessRating *int         `json:"effectivenessRating,omitempty" bson:"effectivenessRating,omitempty" binding:"omitempty,min=1,max=10"`
	Tags                []string     `json:"tags,omitempty" bson:"tags,omitempty" binding:"omitempty,dive,required"`
}

type Session struct {
	ID        string `json:"id" bson:"_id"`
	Script    `bson:",inline"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Version identifies one revision of a stored session. Every store bumps
// UpdatedAt on write, so it changes exactly when the document does.
func (s Session) Version() string {
	return s.ID + "." + strconv.FormatInt(s.UpdatedAt.UnixNano(), 36)
}

// Envelope wraps the create response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// ListEnvelope wraps list responses.
type ListEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
}

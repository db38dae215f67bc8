package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/session"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/gin-gonic/gin"
)

type SuggestionsService interface {
	Create(ctx context.Context, script session.Script) (session.Envelope[session.Session], error)
	FindAll(ctx context.Context) (session.ListEnvelope[session.Session], error)
	FindOne(ctx context.Context, id string) (session.Session, error)
	Update(ctx context.Context, id string, p session.Patch) (session.Session, error)
	Remove(ctx context.Context, id string) error
	FindByGoalID(ctx context.Context, goalID string) (session.ListEnvelope[session.Session], error)
	FindByTags(ctx context.Context, tags []string) (session.ListEnvelope[session.Session], error)
}

type SuggestionsHandler struct {
	svc     SuggestionsService
	log     *slog.Logger
	timeout time.Duration
}

func NewSuggestionsHandler(svc SuggestionsService, log *slog.Logger, timeout time.Duration) *SuggestionsHandler {
	RegisterValidators()

	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &SuggestionsHandler{svc: svc, log: log, timeout: timeout}
}

func (h *SuggestionsHandler) Create(ctx *gin.Context) {
	var req session.Script

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	env, err := h.svc.Create(cctx, req)
	if err != nil {
		h.respondErr(ctx, "create_session_failed", err)
		return
	}

	ctx.JSON(http.StatusCreated, env)
}

// List serves GET /suggestions, optionally narrowed by ?goalId= or ?tags=a,b.
func (h *SuggestionsHandler) List(ctx *gin.Context) {
	goalID, hasGoal := ctx.GetQuery("goalId")
	rawTags, hasTags := ctx.GetQuery("tags")

	if hasGoal && hasTags {
		RespondBadRequest(ctx, "Use either goalId or tags, not both", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	var (
		env session.ListEnvelope[session.Session]
		err error
	)

	switch {
	case hasGoal:
		if strings.TrimSpace(goalID) == "" {
			RespondBadRequest(ctx, "goalId must not be empty", nil)
			return
		}
		env, err = h.svc.FindByGoalID(cctx, goalID)
	case hasTags:
		tags := splitTags(ctx.QueryArray("tags"))
		if len(tags) == 0 {
			RespondBadRequest(ctx, "tags must contain at least one tag", gin.H{"tags": rawTags})
			return
		}
		env, err = h.svc.FindByTags(cctx, tags)
	default:
		env, err = h.svc.FindAll(cctx)
	}

	if err != nil {
		h.respondErr(ctx, "list_sessions_failed", err)
		return
	}

	ctx.JSON(http.StatusOK, env)
}

func (h *SuggestionsHandler) Get(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	s, err := h.svc.FindOne(cctx, ctx.Param("id"))
	if err != nil {
		h.respondErr(ctx, "get_session_failed", err)
		return
	}

	RespondVersioned(ctx, http.StatusOK, s)
}

func (h *SuggestionsHandler) Update(ctx *gin.Context) {
	var req session.Patch

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	s, err := h.svc.Update(cctx, ctx.Param("id"), req)
	if err != nil {
		h.respondErr(ctx, "update_session_failed", err)
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *SuggestionsHandler) Delete(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.svc.Remove(cctx, ctx.Param("id")); err != nil {
		h.respondErr(ctx, "delete_session_failed", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session deleted successfully",
	})
}

func (h *SuggestionsHandler) respondErr(ctx *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		RespondNotFound(ctx, "Session not found")
	case errors.Is(err, session.ErrNoTechniques):
		respondFieldError(ctx, "workingPhase.techniques", "min", "1")
	case errors.Is(err, session.ErrBlankGoal):
		respondFieldError(ctx, "goal.text", "notblank", "")
	default:
		observability.LogError(h.log, msg, err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Something went wrong")
	}
}

func respondFieldError(ctx *gin.Context, field, rule, param string) {
	RespondBadRequest(ctx, "Invalid request body", gin.H{
		"fields": []FieldError{{
			Field:   field,
			Rule:    rule,
			Param:   param,
			Message: validationMessage(rule, param),
		}},
	})
}

// splitTags accepts both ?tags=a,b and repeated ?tags=a&tags=b.
func splitTags(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/hypnohub/internal/actorctx"
	"github.com/geocoder89/hypnohub/internal/domain/user"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/geocoder89/hypnohub/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (user.PublicView, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Me(ctx context.Context, userID string) (user.PublicView, error)
}

type AuthHandler struct {
	svc     AuthService
	log     *slog.Logger
	timeout time.Duration
}

func NewAuthHandler(svc AuthService, log *slog.Logger, timeout time.Duration) *AuthHandler {
	RegisterValidators()

	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &AuthHandler{svc: svc, log: log, timeout: timeout}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72,strongpassword"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.Register(cctx, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "User with this email already exists")
			return
		}

		observability.LogError(h.log, "register_failed", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, view)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
			return
		}

		observability.LogError(h.log, "login_failed", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// Me returns the caller's profile; mounted behind RequireAuth.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.Me(cctx, userID)
	if err != nil {
		// token outlived its user
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "unauthorized", "User no longer exists")
			return
		}

		observability.LogError(h.log, "me_failed", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, view)
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	"github.com/braidmgr/braidmgr/internal/http/dto"
	"github.com/braidmgr/braidmgr/internal/httputil"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
	userUseCase "github.com/braidmgr/braidmgr/internal/user/usecase"
)

// AuthRoutes wires the account endpoints. A zero value leaves them unmounted.
type AuthRoutes struct {
	UseCase  userUseCase.UseCase
	Verifier CredentialVerifier
}

// AuthHandler serves registration, login and session endpoints. None of them touch
// a tenant store, so they bypass the orchestrator.
type AuthHandler struct {
	auth   userUseCase.UseCase
	policy httputil.ErrorPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth userUseCase.UseCase, policy httputil.ErrorPolicy, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterHandler creates an account.
// POST /v1/auth/register
func (h *AuthHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.ToRegisterInput())
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapUserToResponse(user))
}

// LoginHandler exchanges an email and password for a session.
// POST /v1/auth/login
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.ToLoginInput(clientOf(c)))
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSessionToResponse(session, h.now()))
}

// RefreshHandler rotates a refresh token.
// POST /v1/auth/refresh
func (h *AuthHandler) RefreshHandler(c *gin.Context) {
	var req dto.RefreshRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientOf(c))
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSessionToResponse(session, h.now()))
}

// LogoutHandler revokes the caller's refresh token, or all of them.
// POST /v1/auth/logout
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	claims := GetClaims(c)
	if claims == nil {
		h.policy.Handle(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.LogoutRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims.SubjectID, req.RefreshToken, req.All); err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// MeHandler returns the caller's account.
// GET /v1/auth/me
func (h *AuthHandler) MeHandler(c *gin.Context) {
	claims := GetClaims(c)
	if claims == nil {
		h.policy.Handle(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	user, err := h.auth.Me(c.Request.Context(), claims.SubjectID)
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	return true
}

func clientOf(c *gin.Context) userDomain.Client {
	return userDomain.Client{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"
	"time"

	"cpaas-console/internal/domain/auth"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"
	"cpaas-console/internal/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service is the part of the auth service the handler drives.
type Service interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.SessionResponse, error)
	Signup(ctx context.Context, req *auth.SignupRequest) (*auth.SessionResponse, error)
	Logout(ctx context.Context, operatorID, jti string, expiresAt time.Time) error
	LogoutAllSessions(ctx context.Context, operatorID string) error
	GetProfile(ctx context.Context, operatorID, jti string) (*auth.UserProfile, error)
	GetActiveSessions(ctx context.Context, operatorID string) ([]*session.SessionData, error)
}

type AuthHandler struct {
	authService Service
	logger      *zap.Logger
}

func NewAuthHandler(authService Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Signup ==========

func (h *AuthHandler) Signup(c *gin.Context) {
	var req auth.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	resp, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("signup failed",
			zap.String("email", req.Email),
			zap.Error(err),
		)
		response.FromError(c, "signup failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "signup successful", resp)
}

// ========== Login ==========

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("email", req.Email),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		response.FromError(c, "login failed", err)
		return
	}

	if resp.Profile != nil {
		h.logger.Info("operator logged in",
			zap.String("operator_id", resp.Profile.ID),
			zap.String("email", resp.Profile.Email),
		)
	}

	response.Success(c, http.StatusOK, "login successful", resp)
}

// ========== Logout ==========

func (h *AuthHandler) Logout(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)
	jti := middleware.MustGetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), operatorID, jti, middleware.GetTokenExpiry(c)); err != nil {
		h.logger.Error("logout failed",
			zap.String("operator_id", operatorID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)

	if err := h.authService.LogoutAllSessions(c.Request.Context(), operatorID); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout all failed", err)
		return
	}

	response.Success(c, http.StatusOK, "all sessions logged out", nil)
}

// ========== Profile & Sessions ==========

func (h *AuthHandler) GetMe(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)
	jti := middleware.MustGetJTI(c)

	profile, err := h.authService.GetProfile(c.Request.Context(), operatorID, jti)
	if err != nil {
		response.FromError(c, "failed to get profile", err)
		return
	}

	response.Success(c, http.StatusOK, "profile retrieved", profile)
}

// sessionView hides the backend token held in the session.
type sessionView struct {
	SessionID      string    `json:"session_id"`
	Provider       string    `json:"provider"`
	LoginMethod    string    `json:"login_method"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current"`
}

func (h *AuthHandler) GetActiveSessions(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)
	jti := middleware.MustGetJTI(c)

	sessions, err := h.authService.GetActiveSessions(c.Request.Context(), operatorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get sessions", err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			SessionID:      s.JTI,
			Provider:       s.Provider,
			LoginMethod:    s.LoginMethod,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			LoginAt:        s.LoginAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			Current:        s.JTI == jti,
		})
	}

	response.Success(c, http.StatusOK, "active sessions", gin.H{
		"sessions": views,
		"count":    len(views),
	})
}

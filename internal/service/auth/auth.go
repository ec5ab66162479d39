// internal/service/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cpaas-console/internal/domain/auth"
	xerrors "cpaas-console/internal/pkg/errors"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/session"

	"go.uber.org/zap"
)

const providerLocal = "local"

// Backend is the part of the auth backend the console signs in against.
type Backend interface {
	Login(ctx context.Context, email, password string) (*auth.BackendTokenResponse, error)
	Signup(ctx context.Context, name, email, password string) (*auth.BackendTokenResponse, error)
	FetchProfile(ctx context.Context, token string) (json.RawMessage, error)
}

// SessionNotifier tells connected dashboards that a session ended.
type SessionNotifier interface {
	ForceLogout(operatorID, jti, reason string)
}

type AuthService struct {
	backend        Backend
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	notifier       SessionNotifier
	logger         *zap.Logger
	now            func() time.Time
}

func NewAuthService(
	backend Backend,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	notifier SessionNotifier,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		backend:        backend,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
	}
}

// ========== Local sign-in ==========

func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.SessionResponse, error) {
	if s.rateLimiter != nil {
		allowed, _, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Email)
		if err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("too many login attempts, please try again in 15 minutes: %w", xerrors.ErrRateLimited)
		}
	}

	tok, err := s.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Email); err != nil {
			s.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	return s.EstablishSession(ctx, &auth.EstablishRequest{
		BackendToken: tok.Token,
		Provider:     providerLocal,
		LoginMethod:  auth.LoginMethodEmail,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		User:         tok.User,
		Fetch:        s.backend.FetchProfile,
	})
}

func (s *AuthService) Signup(ctx context.Context, req *auth.SignupRequest) (*auth.SessionResponse, error) {
	tok, err := s.backend.Signup(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}

	return s.EstablishSession(ctx, &auth.EstablishRequest{
		BackendToken: tok.Token,
		Provider:     providerLocal,
		LoginMethod:  auth.LoginMethodEmail,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		User:         tok.User,
		Fetch:        s.backend.FetchProfile,
	})
}

// AllowOAuthBegin applies the per-IP limit on opening sign-in popups.
func (s *AuthService) AllowOAuthBegin(ctx context.Context, ip string) error {
	if s.rateLimiter == nil {
		return nil
	}
	allowed, err := s.rateLimiter.CheckOAuthBegin(ctx, ip)
	if err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return fmt.Errorf("too many sign-in attempts, please try again later: %w", xerrors.ErrRateLimited)
	}
	return nil
}

// ========== Sessions ==========

// EstablishSession turns a backend token into a console session. The profile
// is fetched first, so a failed fetch leaves nothing persisted.
func (s *AuthService) EstablishSession(ctx context.Context, req *auth.EstablishRequest) (*auth.SessionResponse, error) {
	if req.BackendToken == "" {
		return nil, fmt.Errorf("%w: empty backend token", xerrors.ErrAuthentication)
	}

	raw := req.User
	if req.Fetch != nil {
		fetched, err := req.Fetch(ctx, req.BackendToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profile: %w", err)
		}
		raw = fetched
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no profile available", xerrors.ErrAuthentication)
	}

	profile, err := auth.NormalizeProfile(req.LoginMethod, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrAuthentication, err)
	}

	issued, err := s.jwtManager.Generator.Generate(profile.ID, req.Provider, req.LoginMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to generate console token: %w", err)
	}

	now := s.now()
	sessionData := &session.SessionData{
		JTI:            issued.JTI,
		OperatorID:     profile.ID,
		BackendToken:   req.BackendToken,
		Provider:       req.Provider,
		LoginMethod:    req.LoginMethod,
		Profile:        profile,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      issued.ExpiresAt,
	}
	if err := s.sessionManager.CreateSession(ctx, sessionData); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("console session established",
		zap.String("operator_id", profile.ID),
		zap.String("provider", req.Provider),
		zap.String("jti", issued.JTI),
	)

	return &auth.SessionResponse{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt,
		Profile:   profile,
	}, nil
}

// ValidateToken verifies a console token and loads its session.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
	claims, err := s.jwtManager.Verifier.VerifyConsoleToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token: %v: %w", err, xerrors.ErrUnauthorized)
	}

	blacklisted, err := s.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, nil, fmt.Errorf("token has been revoked: %w", xerrors.ErrUnauthorized)
	}

	sess, err := s.sessionManager.GetSession(ctx, claims.OperatorID, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("session not found or expired: %w", err)
	}

	return claims, sess, nil
}

// ========== Logout ==========

// Logout ends one session and revokes its token for the rest of its life.
func (s *AuthService) Logout(ctx context.Context, operatorID, jti string, expiresAt time.Time) error {
	if err := s.sessionManager.InvalidateSession(ctx, operatorID, jti); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	if err := s.sessionManager.BlacklistToken(ctx, jti, expiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(operatorID, jti, "Logged out")
	}
	return nil
}

// DiscardSession removes a session that was created for a sign-in that did
// not complete. No dashboard knows the token yet, so nobody is notified.
func (s *AuthService) DiscardSession(ctx context.Context, token string) error {
	claims, err := s.jwtManager.Verifier.VerifyConsoleToken(token)
	if err != nil {
		return fmt.Errorf("invalid token: %v: %w", err, xerrors.ErrUnauthorized)
	}
	if err := s.sessionManager.InvalidateSession(ctx, claims.OperatorID, claims.ID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	if claims.ExpiresAt != nil {
		if err := s.sessionManager.BlacklistToken(ctx, claims.ID, claims.ExpiresAt.Sub(s.now())); err != nil {
			return fmt.Errorf("failed to blacklist token: %w", err)
		}
	}
	return nil
}

func (s *AuthService) LogoutAllSessions(ctx context.Context, operatorID string) error {
	jtis, err := s.sessionManager.InvalidateAllOperatorSessions(ctx, operatorID)
	if err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	for _, jti := range jtis {
		if err := s.sessionManager.BlacklistToken(ctx, jti, s.jwtManager.Generator.Ttl); err != nil {
			s.logger.Warn("failed to blacklist token", zap.String("jti", jti), zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(operatorID, "", "All sessions logged out")
	}
	return nil
}

// ========== Profile ==========

func (s *AuthService) GetProfile(ctx context.Context, operatorID, jti string) (*auth.UserProfile, error) {
	sess, err := s.sessionManager.GetSession(ctx, operatorID, jti)
	if err != nil {
		return nil, err
	}
	if sess.Profile == nil {
		return nil, fmt.Errorf("profile: %w", xerrors.ErrNotFound)
	}
	return sess.Profile, nil
}

func (s *AuthService) GetActiveSessions(ctx context.Context, operatorID string) ([]*session.SessionData, error) {
	sessions, err := s.sessionManager.GetOperatorSessions(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return sessions, nil
}

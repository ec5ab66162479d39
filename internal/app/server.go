// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cpaas-console/internal/backend"
	"cpaas-console/internal/config"
	"cpaas-console/internal/db"
	"cpaas-console/internal/domain/oauth"
	authHandler "cpaas-console/internal/handlers/auth"
	messagingHandler "cpaas-console/internal/handlers/messaging"
	metricsHandler "cpaas-console/internal/handlers/metrics"
	oauthHandler "cpaas-console/internal/handlers/oauth"
	rolesHandler "cpaas-console/internal/handlers/roles"
	secretsHandler "cpaas-console/internal/handlers/secrets"
	wsHandler "cpaas-console/internal/handlers/websocket"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/jwt"
	"cpaas-console/internal/pkg/logger"
	"cpaas-console/internal/pkg/session"
	"cpaas-console/internal/repository/postgres"
	authUsecase "cpaas-console/internal/service/auth"
	messagingUsecase "cpaas-console/internal/service/messaging"
	metricsUsecase "cpaas-console/internal/service/metrics"
	oauthUsecase "cpaas-console/internal/service/oauth"
	rolesUsecase "cpaas-console/internal/service/roles"
	secretsUsecase "cpaas-console/internal/service/secrets"
	"cpaas-console/internal/websocket"
	wsHandlers "cpaas-console/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server

	cancel  context.CancelFunc
	closers []func()
}

func NewServer(cfg config.AppConfig) (*Server, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{cfg: cfg, engine: gin.New(), logger: log}, nil
}

// Start wires every component and serves HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	s.logger.Info("connected to PostgreSQL")

	dbWrapper := postgres.NewDB(pool)
	if err := dbWrapper.Migrate(ctx); err != nil {
		return err
	}

	// ----- Redis -----
	redisClient, err := db.NewRedis(db.RedisConfig{
		ClusterMode: false,
		Addresses:   []string{s.cfg.RedisAddr},
		Password:    s.cfg.RedisPass,
		DB:          0,
		PoolSize:    10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.closers = append(s.closers, func() { _ = redisClient.Close() })
	s.logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Backend client -----
	backendClient := backend.NewClient(backend.Config{
		AuthURL:        s.cfg.Backend.AuthURL,
		MessagingURL:   s.cfg.Backend.MessagingURL,
		MetricsURL:     s.cfg.Backend.MetricsURL,
		Timeout:        s.cfg.Backend.Timeout,
		SMSServiceName: s.cfg.Backend.SMSServiceName,
	}, s.logger)

	// ----- Repositories -----
	secretRepo := postgres.NewSecretRepository(dbWrapper)
	dispatchRepo := postgres.NewDispatchRepository(dbWrapper)

	// ----- WebSocket Hub -----
	var authService *authUsecase.AuthService
	hub := websocket.NewHub(websocket.ValidatorFunc(func(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
		return authService.ValidateToken(ctx, token)
	}), s.logger)

	// ----- Services (Usecases) -----
	authService = authUsecase.NewAuthService(
		backendClient,
		jwtManager,
		sessionManager,
		rateLimiter,
		hub,
		s.logger,
	)

	coordinator, err := s.buildCoordinator(backendClient, redisClient, authService)
	if err != nil {
		return err
	}

	dispatcher := messagingUsecase.NewDispatcher(
		backendClient,
		secretRepo,
		hub,
		dispatchRepo,
		messagingUsecase.Config{
			SMSMaxLength: s.cfg.Dispatch.SMSMaxLength,
			MaxInFlight:  s.cfg.Dispatch.MaxInFlight,
		},
		s.logger,
	)
	secretService := secretsUsecase.NewSecretService(secretRepo, s.logger)
	roleService := rolesUsecase.NewRoleService(backendClient, s.logger)
	metricsService := metricsUsecase.NewMetricsService(backendClient, dispatchRepo, s.logger)

	hub.RegisterHandler(wsHandlers.NewActivityHandler(metricsService))

	go hub.Run(ctx)
	go coordinator.Run(ctx, s.cfg.OAuth.SweepInterval)

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:      authHandler.NewAuthHandler(authService, s.logger),
		OAuthHandler:     oauthHandler.NewOAuthHandler(coordinator, authService, s.cfg.AllowedOrigin, s.logger),
		MessagingHandler: messagingHandler.NewMessagingHandler(dispatcher, s.logger),
		SecretsHandler:   secretsHandler.NewSecretsHandler(secretService),
		RoleHandler:      rolesHandler.NewRoleHandler(roleService, s.logger),
		MetricsHandler:   metricsHandler.NewMetricsHandler(metricsService),
		WSHandler:        wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigin, s.logger),
		AuthMiddleware:   middleware.NewAuthMiddleware(authService),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigin),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.logger, handlers)

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server running",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("oauth_mode", s.cfg.OAuth.Mode),
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildCoordinator(
	backendClient *backend.Client,
	redisClient redis.UniversalClient,
	sessions oauthUsecase.SessionEstablisher,
) (*oauthUsecase.Coordinator, error) {
	providers, err := oauthUsecase.NewProviders(
		s.cfg.OAuth.Mode,
		backendClient,
		s.cfg.OAuth.CallbackURL,
		map[oauth.Provider][2]string{
			oauth.ProviderGoogle:   {s.cfg.OAuth.GoogleClientID, s.cfg.OAuth.GoogleClientSecret},
			oauth.ProviderFacebook: {s.cfg.OAuth.FacebookClientID, s.cfg.OAuth.FacebookClientSecret},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build oauth providers: %w", err)
	}
	if len(providers) == 0 {
		s.logger.Warn("no oauth provider configured; social sign-in is disabled")
	}

	var store oauthUsecase.CorrelationStore
	switch s.cfg.OAuth.CorrelationStore {
	case "redis":
		store = oauthUsecase.NewRedisStore(redisClient, s.cfg.OAuth.CorrelationTTL, time.Now)
	case "", "memory":
		store = oauthUsecase.NewMemoryStore(s.cfg.OAuth.CorrelationTTL, time.Now)
	default:
		return nil, fmt.Errorf("unknown correlation store %q", s.cfg.OAuth.CorrelationStore)
	}

	return oauthUsecase.NewCoordinator(store, providers, sessions, oauthUsecase.Options{
		CorrelationTTL: s.cfg.OAuth.CorrelationTTL,
		Retention:      s.cfg.OAuth.FlowRetention,
	}, s.logger), nil
}

// Shutdown drains HTTP, stops background loops and closes connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	_ = s.logger.Sync()
	return err
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shoe-market/internal/config"
	"shoe-market/internal/database"
	"shoe-market/internal/metrics"
	custommiddleware "shoe-market/internal/middleware"
	"shoe-market/internal/notification"
	"shoe-market/internal/repository"
	"shoe-market/internal/service"
	"shoe-market/internal/storage"
	"shoe-market/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config     *config.Config
	logger     *zap.Logger
	db         database.Service
	redis      *redis.Client
	dispatcher *notification.BackgroundDispatcher
}

func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	m := metrics.New()

	blobs, err := storage.NewMinioStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis only disables it.
		logger.Warn("Redis unavailable, rate limiting disabled until it recovers", zap.Error(err))
	}

	var (
		dispatcher *notification.BackgroundDispatcher
		dispatch   notification.DispatchFunc
	)
	mailer, err := notification.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		logger.Warn("SMTP not configured, welcome emails are disabled", zap.Error(err))
	} else {
		dispatcher = notification.NewBackgroundDispatcher(
			mailer,
			cfg.Notification.MaxInFlight,
			time.Duration(cfg.Notification.QueueTimeoutSeconds)*time.Second,
			m,
			logger,
		)
		dispatch = dispatcher.Dispatch
	}
	welcome, err := notification.NewWelcomeRenderer(cfg.Site.FrontendURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	// Repositories
	sqlDB := db.DB()
	accountRepo := repository.NewAccountRepository(sqlDB)
	profileRepo := repository.NewProfileRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	listingRepo := repository.NewListingRepository(sqlDB)
	wishlistRepo := repository.NewWishlistRepository(sqlDB)
	reviewRepo := repository.NewReviewRepository(sqlDB)

	// Services
	pipeline := service.NewProvisioningPipeline(accountRepo, welcome, dispatch, m, logger)
	accountService := service.NewAccountService(accountRepo, profileRepo, refreshTokenRepo, pipeline, blobs,
		service.TokenConfig{
			Secret:        cfg.JWT.Secret,
			AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
			RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		}, logger)
	ratingService := service.NewRatingService(reviewRepo)
	listingService := service.NewListingService(listingRepo, blobs, m, logger)
	wishlistService := service.NewWishlistService(wishlistRepo, listingRepo, m, logger)
	profileService := service.NewProfileService(accountRepo, profileRepo, ratingService, blobs, logger)
	reviewService := service.NewReviewService(reviewRepo, accountRepo, logger)
	sitemapService := service.NewSitemapService(listingRepo, cfg.Site.FrontendURL)

	// Router
	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(m.Middleware)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", m.Handler())

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	authRateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "rl:auth",
	}, logger)

	transport.NewAccountHandler(accountService, blobs, logger).RegisterRoutes(router, authMiddleware, authRateLimit)
	transport.NewProfileHandler(profileService, blobs, logger).RegisterRoutes(router, authMiddleware)
	transport.NewListingHandler(listingService, wishlistService, ratingService, blobs, logger).RegisterRoutes(router, optionalAuth)
	transport.NewReviewHandler(reviewService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewSitemapHandler(sitemapService, logger).RegisterRoutes(router)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		dispatcher: dispatcher,
	}, nil
}

// Close drains pending emails and releases the server's connections.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Closing server resources")

	if s.dispatcher != nil {
		if err := s.dispatcher.Close(ctx); err != nil {
			s.logger.Warn("Pending emails abandoned at shutdown", zap.Error(err))
		}
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}

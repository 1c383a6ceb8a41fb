package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/config"
	"github.com/mallkit/passport/internal/infra/database"
	kafkainfra "github.com/mallkit/passport/internal/infra/kafka"
	"github.com/mallkit/passport/internal/infra/logger"
	qrcodeinfra "github.com/mallkit/passport/internal/infra/qrcode"
	redisinfra "github.com/mallkit/passport/internal/infra/redis"
	"github.com/mallkit/passport/internal/infra/security"
	"github.com/mallkit/passport/internal/infra/sms"
	"github.com/mallkit/passport/internal/infra/telemetry"
	"github.com/mallkit/passport/internal/infra/wechat"
	postgresrepo "github.com/mallkit/passport/internal/repository/postgres"
	redisrepo "github.com/mallkit/passport/internal/repository/redis"
	"github.com/mallkit/passport/internal/transport/http/middleware"
	"github.com/mallkit/passport/internal/transport/http/routes"
	"github.com/mallkit/passport/internal/usecase"
)

// Application wires the service together and owns its lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New builds the application graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	codec, err := security.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	var eventPublisher port.EventPublisher
	var kafkaProducer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	store := redisrepo.NewCredentialStore(redisClient.Client(), cfg.Redis.KeyPrefix)
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.KeyPrefix+":ratelimit")
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	dispatcher := usecase.NewCredentialDispatcher(cfg.Auth.HideUserNotFound, log,
		postgresrepo.NewSystemUserRepository(pool),
		postgresrepo.NewMemberRepository(pool),
	)

	tokens := usecase.NewTokenService(codec, store, cfg.JWT)
	codes := usecase.NewVerificationCodeService(store, sms.NewLoggingSender(log), metrics, log, cfg.SMS, cfg.App.IsProduction())
	qrcodes := usecase.NewQrcodeLoginService(store, qrcodeProvider(cfg, log), metrics, log, cfg.Qrcode)

	states := usecase.NewOAuth2StateTracker(store, cfg.OAuth2.StateTTL)
	registry := usecase.NewProviderStrategyRegistry(
		usecase.NewWeChatStrategy(nil, log),
		usecase.NewDefaultStrategy(nil),
	)
	oauth := usecase.NewOAuth2LoginService(cfg.OAuth2, registry, states, eventPublisher, log)

	login := usecase.NewLoginService(dispatcher, tokens, codes, qrcodes, oauth, eventPublisher, metrics, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Login:   login,
			Tokens:  tokens,
			Codes:   codes,
			Qrcodes: qrcodes,
			OAuth:   oauth,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// qrcodeProvider prefers the first enabled WeChat registration with an
// API base URL; without one, QR links are minted locally.
func qrcodeProvider(cfg *config.AppConfig, log *zap.Logger) port.QrcodeProvider {
	for _, registration := range cfg.OAuth2.Providers {
		if !registration.Enabled || registration.APIBaseURL == "" {
			continue
		}
		if !usecase.IsWeChatFamily(registration.RegistrationID) {
			continue
		}

		appID := registration.AppID
		if appID == "" {
			appID = registration.ClientID
		}

		client, err := wechat.NewClient(wechat.Config{
			AppID:       appID,
			Secret:      registration.ClientSecret,
			AuthURL:     registration.AuthURL,
			TokenURL:    registration.TokenURL,
			UserInfoURL: registration.UserInfoURL,
			RedirectURL: registration.RedirectURL,
			Scopes:      registration.Scopes,
			APIBaseURL:  registration.APIBaseURL,
		}, nil, log)
		if err != nil {
			log.Warn("wechat qrcode provider unavailable",
				zap.String("registration_id", registration.RegistrationID),
				zap.Error(err))
			continue
		}

		log.Info("wechat qrcode provider selected",
			zap.String("registration_id", registration.RegistrationID))
		return client
	}

	return qrcodeinfra.NewLocalProvider("")
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting passport API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

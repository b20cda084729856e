package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/token-url-service/internal/authz"
	"github.com/iliyamo/token-url-service/internal/captcha"
	"github.com/iliyamo/token-url-service/internal/config"
	"github.com/iliyamo/token-url-service/internal/database"
	"github.com/iliyamo/token-url-service/internal/handler"
	"github.com/iliyamo/token-url-service/internal/middleware"
	"github.com/iliyamo/token-url-service/internal/queue"
	"github.com/iliyamo/token-url-service/internal/reputation"
	"github.com/iliyamo/token-url-service/internal/repository"
	"github.com/iliyamo/token-url-service/internal/router"
	"github.com/iliyamo/token-url-service/internal/tokenurl"
)

func main() {
	cfg := config.Load()
	if cfg.Env != "prod" {
		log.SetLevel(log.DEBUG)
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: without it the reputation cache and rate limiter pass through.
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warnj(log.JSON{"msg": "redis unavailable, running without cache and rate limiting", "error": err.Error()})
	} else {
		defer rdb.Close()
	}

	tc := cfg.TokenURLs
	httpClient := &http.Client{Timeout: tc.ReputationTimeout}
	spam := reputation.NewChecker(
		tc.BlockedDomains,
		reputation.NewCachedClient(reputation.NewStopForumSpamClient(tc.ReputationBaseURL, httpClient), rdb, tc.ReputationCacheTTL),
		tc.ReputationTimeout,
	)

	var verifier captcha.Verifier = captcha.Noop{}
	if tc.RecaptchaSecret != "" {
		verifier = captcha.NewRecaptcha(tc.RecaptchaSecret, tc.RecaptchaVerifyURL, &http.Client{Timeout: 5 * time.Second})
	} else {
		log.Warnj(log.JSON{"msg": "RECAPTCHA_SECRET not set, captcha verification disabled"})
	}

	notices := repository.NewNoticeRepo(db)
	tokens := repository.NewTokenURLRepo(db)
	policy := authz.DefaultPolicy()

	dispatcher := tokenurl.NewDispatcher(queue.NewPublisher(cfg.RabbitMQURL))
	manager := tokenurl.NewManager(
		tokens, notices,
		tokenurl.NewValidator(notices, tokens, verifier, spam, policy),
		dispatcher,
		tc.ActivePeriod,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		_ = queue.StartConfirmationConsumer(ctx, cfg.RabbitMQURL, &queue.LogMailer{Dir: cfg.MailDir})
	}()

	e := echo.New()
	e.HideBanner = true
	if e.IPExtractor, err = middleware.NewIPExtractor(cfg.TrustedProxies); err != nil {
		log.Fatalf("TRUSTED_PROXIES: %v", err)
	}
	e.Use(echomw.RequestID(), echomw.Logger(), echomw.Recover())

	router.RegisterRoutes(e, handler.Health(db, rdb))
	router.RegisterTokenURLs(e,
		handler.NewTokenURLHandler(manager, notices),
		policy,
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	go func() {
		addr := ":" + cfg.Port
		log.Infoj(log.JSON{"msg": "listening", "addr": addr, "env": cfg.Env})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorj(log.JSON{"msg": "server stopped", "error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorj(log.JSON{"msg": "shutdown", "error": err.Error()})
	}
	dispatcher.Wait()
	<-consumerDone
	log.Infoj(log.JSON{"msg": "stopped", "dispatch_failures": dispatcher.Failures()})
}

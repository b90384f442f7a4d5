// Package app wires the closet server: config, logging, persistence,
// rate limiting, metrics and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"closet/cmd/identity"
	"closet/cmd/internal/apperr"
	authapi "closet/cmd/internal/auth/api"
	"closet/cmd/internal/auth/session"
	"closet/cmd/internal/closet"
	"closet/cmd/internal/ratelimit"
	"closet/cmd/security/password"
)

// App is the closet server runtime.
type App struct {
	cfg Config
	log Logger

	db      *backend
	redis   *redis.Client
	metrics *Metrics
	resp    *apperr.Responder
	limit   *ratelimit.Middleware

	auth    *authapi.Handler
	closets *closet.Handler

	handler http.Handler
}

// Deps carries the subsystem configs loaded next to Config.
type Deps struct {
	Session  session.Config
	Auth     authapi.Config
	Password password.Params
}

// New constructs a fully wired App. Callers must Close it when Run is not used.
func New(ctx context.Context, cfg Config, deps Deps, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg, deps.Session); err != nil {
		return nil, err
	}

	issuer, err := session.NewIssuer(deps.Session)
	if err != nil {
		return nil, err
	}

	db, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, db: db, metrics: NewMetrics()}
	if err := a.wire(ctx, deps, issuer); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.handler = a.routes()
	return a, nil
}

func (a *App) wire(ctx context.Context, deps Deps, issuer *session.Issuer) error {
	a.resp = apperr.NewResponder(a.log, !a.cfg.Production(), apperr.WithObserver(a.metrics.ObserveError))

	accounts, err := identity.NewAccounts(a.db.users, password.NewHasher(deps.Password))
	if err != nil {
		return err
	}

	images, err := closet.NewImageStore(a.cfg.UploadDir)
	if err != nil {
		return err
	}
	a.closets, err = closet.NewHandler(a.log, a.db.items, images, a.resp,
		closet.WithMaxUploadBytes(a.cfg.MaxUploadBytes),
	)
	if err != nil {
		return err
	}

	authCfg := deps.Auth
	authCfg.TrustProxy = authCfg.TrustProxy || a.cfg.TrustProxy
	a.auth, err = authapi.NewHandler(a.log, authCfg, accounts, issuer, session.NewCookiePolicy(deps.Session), a.resp,
		authapi.WithAuditor(a.db.auditor),
		authapi.WithObserver(a.metrics),
		authapi.WithAccountCleaner(a.closets),
	)
	if err != nil {
		return err
	}

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		return err
	}
	a.limit = ratelimit.NewMiddleware(limiter, ratelimit.ByClientIP(authCfg.TrustProxy), a.resp, a.log,
		ratelimit.WithRejectHook(a.metrics.RateLimited),
	)
	return nil
}

// newLimiter uses Redis when configured so every replica shares one budget.
func (a *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.cfg.RedisURL == "" {
		a.log.Info("ratelimit.enabled", "backend", "memory", "max", a.cfg.RateLimitMax, "window", a.cfg.RateLimitWindow)
		return ratelimit.NewMemory(a.cfg.RateLimitMax, a.cfg.RateLimitWindow), nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	a.redis = client

	a.log.Info("ratelimit.enabled", "backend", "redis", "max", a.cfg.RateLimitMax, "window", a.cfg.RateLimitWindow)
	return ratelimit.NewRedis(client, "closet:rl:", a.cfg.RateLimitMax, a.cfg.RateLimitWindow), nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases Redis and database resources.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Env, "db", a.db.driver)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		_ = a.Close()
		return err
	}
	if err := a.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

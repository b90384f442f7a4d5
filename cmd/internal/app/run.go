package app

import (
	"context"
	"os/signal"
	"syscall"

	authapi "closet/cmd/internal/auth/api"
	"closet/cmd/internal/auth/session"
	"closet/cmd/security/password"
)

// Run is the CLI entrypoint used by cmd/closet.
func Run() error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	sess, err := session.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	deps := Deps{
		Session:  sess,
		Auth:     authapi.LoadConfigFromEnv(),
		Password: password.ParamsFromEnv(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, deps, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

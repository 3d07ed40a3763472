package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ideajournal/internal/app"
	"ideajournal/internal/authpw"
	"ideajournal/internal/credentials"
	"ideajournal/internal/session"
	"ideajournal/internal/util"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides API_ADDR)")
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer cleanup.close()

	creds, db, err := openCredentials(ctx, cfg, logger, &cleanup)
	if err != nil {
		logger.Error("credential store unusable", zap.Error(err))
		return err
	}
	checks := map[string]func(context.Context) error{"credentials": creds.Verify}
	if db != nil {
		checks["database"] = db.PingContext
	}

	vault, err := credentials.NewPasswordVault(cfg.MasterKey, logger.Named("audit"))
	if err != nil {
		return err
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { _ = redisStore.Close() })
		checks["sessions"] = redisStore.Ping
		sessions = redisStore
		logger.Info("sessions on redis")
	} else {
		sessions = session.NewMemoryStore()
		logger.Info("sessions in memory")
	}

	repo, journal, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}

	authSvc := authpw.NewService(creds, vault, sessions, authpw.Options{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		SessionTTL:    cfg.SessionTTL,
		Logger:        logger,
	})

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = util.NewToken("", 32)
		if err != nil {
			return err
		}
		logger.Warn("IDEAJOURNAL_SESSION_SECRET not set; sessions will not survive a restart")
	}

	opts := app.Options{
		CookieSecret: []byte(secret),
		CookieSecure: cfg.CookieSecure,
		Checks:       checks,
		Logger:       logger,
	}
	if journal != nil {
		opts.History = journal
	}
	httpServer := app.NewHTTPServer(authSvc, repo, opts)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("idea journal listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}


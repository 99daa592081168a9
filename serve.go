package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"taskflow/api"
	"taskflow/storage"
)

const shutdownTimeout = 15 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			cfg.Port = servePort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides PORT)")
}

func runServe(ctx context.Context) error {
	shutdownTracing := setupTracing(logger)

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	auth, err := newAuth(cfg)
	if err != nil {
		return err
	}

	rc := newRedisClient(cfg.RedisConn)
	if rc == nil {
		logger.Warn("REDIS_CONNECTION_STRING not set; task set cache and idempotency keys disabled")
	}
	deps := api.Deps{
		Store:  c.store,
		Tasks:  storage.NewCache(c.agg, rc, cfg.CacheTTL, logger),
		Schema: c.schema,
		Auth:   auth,
	}
	if rc != nil {
		defer rc.Close()
		deps.Deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}
	if cfg.registryEnabled() {
		approvals, err := storage.New(cfg.StorageConn, cfg.UsersTable, cfg.SignupQueue)
		if err != nil {
			return err
		}
		notifier := api.NewSignupNotifier(approvals, api.NotifierOptions{}, logger)
		defer notifier.Close()
		deps.Registry = approvals
		deps.Notifier = notifier
	} else {
		logger.Warn("STORAGE_CONNECTION_STRING not set; approval gate disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	if cfg.Debug {
		pprof.Register(e)
	}
	api.Register(e, deps, api.Config{Location: cfg.Location, Admins: cfg.Admins}, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	return shutdownTracing(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
	"github.com/mikepea/leaddesk/pkg/leaddesk/database"
	"github.com/mikepea/leaddesk/pkg/leaddesk/logging"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/mikepea/leaddesk/pkg/leaddesk/notify"
	"github.com/mikepea/leaddesk/pkg/leaddesk/statuses"
	"github.com/mikepea/leaddesk/pkg/leaddesk/users"
	"github.com/mikepea/leaddesk/pkg/leaddesk/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	if err := logging.InitSentry(cfg.Sentry, cfg.Environment); err != nil {
		logrus.WithError(err).Warn("Sentry disabled")
	}
	defer logging.Flush()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logrus.Info("Database migrations completed")

	if err := validation.Register(); err != nil {
		logrus.Fatalf("Failed to register validators: %v", err)
	}
	if err := notify.RegisterCallback(db); err != nil {
		logrus.Fatalf("Failed to register notification callback: %v", err)
	}

	// Create default admin user if no admin exists
	created, err := users.EnsureAdmin(db, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		logrus.Fatalf("Failed to ensure admin user exists: %v", err)
	}
	if created {
		logrus.WithField("email", cfg.Auth.AdminEmail).Warn("Created default admin user; change its password")
	}

	if err := statuses.Seed(db); err != nil {
		logrus.Fatalf("Failed to seed lead statuses: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher notify.Publisher = notify.LogPublisher{}
	if cfg.Redis.Enabled {
		rp, err := notify.NewRedisPublisher(ctx, cfg.Redis)
		if err != nil {
			logrus.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rp.Close()
		publisher = rp
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(db, auth.NewTokens(cfg.Auth)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Infof("Starting LeadDesk server on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return notify.NewRelay(db, publisher, cfg.Notify).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.LogError("server_failed", err, nil)
		logging.Flush()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicdesk/internal/api"
	"civicdesk/internal/auth"
	"civicdesk/internal/complaint"
	"civicdesk/internal/config"
	"civicdesk/internal/database"
	"civicdesk/internal/invite"
	"civicdesk/internal/middleware"
	"civicdesk/internal/monitoring"
	"civicdesk/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/postgres/v3"
)

func main() {
	if err := run(context.Background()); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Println("Received signal:", sig)
		cancel()
	}()

	cfg := config.NewConfig()

	// Set up telemetry and logging
	telemetry, err := monitoring.NewOpenTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := telemetry.Logger()
	slog.SetDefault(logger)

	// Set up Postgres connection
	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.URL()); err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	// Set up object storage for complaint images
	uploader, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize object storage", "error", err)
		return err
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	inviteManager := invite.NewManager(logger, &db)
	authenticator := auth.NewAuthenticator(logger, &db, &inviteManager, issuer, cfg.Auth)
	complaintManager := complaint.NewManager(logger, &db, uploader)

	// Startup reconciliation: the admin account must exist before any
	// invite can be minted.
	if err := authenticator.EnsureDefaultAdmin(ctx); err != nil {
		logger.Error("Failed to ensure default admin", "error", err)
		return err
	}

	handler := api.NewHandler(logger, &authenticator, &inviteManager, &complaintManager, telemetry, &db)

	// Set up Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(middleware.Logger(logger))
	app.Use(monitoring.FiberMiddleware(cfg.Telemetry.ServiceName))

	// Rate limiting for credential endpoints, with counters shared across
	// instances through Postgres.
	limiterStorage := postgres.New(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Table:    "tbl_rate_limit",
		Reset:    false,
	})
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 15 * time.Minute,
		Storage:    limiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many attempts. Please try again later.",
			})
		},
	})

	// Routes
	app.Get("/health", handler.Health)
	app.Post("/register", authLimiter, handler.Register)
	app.Post("/login", authLimiter, handler.Login)

	authenticated := middleware.Authenticated(issuer, &db)

	invites := app.Group("/invites", authenticated, middleware.RequireRole(database.RoleAdmin))
	invites.Post("", handler.CreateInvite)
	invites.Get("", handler.ListInvites)
	invites.Delete("/:code", handler.RevokeInvite)

	complaints := app.Group("/complaints", authenticated)
	complaints.Post("", handler.SubmitComplaint)
	complaints.Get("", handler.ListComplaints)
	complaints.Get("/:id", handler.GetComplaint)
	complaints.Post("/:id/upvote", handler.UpvoteComplaint)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Failed to shut down server", "error", err)
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info("Starting server", "addr", addr, "environment", cfg.Server.Environment)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down telemetry", "error", err)
	}

	return nil
}

package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/bawabati/bawabati-backend/api/routes"
	"github.com/bawabati/bawabati-backend/internal/auth"
	"github.com/bawabati/bawabati-backend/internal/handoff"
	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/luckybox"
	"github.com/bawabati/bawabati-backend/internal/notifications"
	"github.com/bawabati/bawabati-backend/internal/orders"
	"github.com/bawabati/bawabati-backend/internal/users"
	"github.com/bawabati/bawabati-backend/pkg/auth/session"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db"
	"github.com/bawabati/bawabati-backend/pkg/logger"
	"github.com/bawabati/bawabati-backend/pkg/migrate"
	"github.com/bawabati/bawabati-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
		LoyaltyConfig:  cfg.Loyalty,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(loyalty.ServiceParams{
		TxRunner:     dbClient,
		Repo:         loyalty.NewRepository(dbClient.DB()),
		ReferralRepo: loyalty.NewReferralRepository(dbClient.DB()),
		Config:       cfg.Loyalty,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		TxRunner:      dbClient,
		Repo:          ordersRepo,
		Notifications: notificationsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	handoffService, err := handoff.NewService(handoff.ServiceParams{
		TxRunner:      dbClient,
		Repo:          handoff.NewRepository(dbClient.DB()),
		Orders:        ordersRepo,
		Loyalty:       loyaltyService,
		Notifications: notificationsService,
		Config:        cfg.Handoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create handoff service", err)
		os.Exit(1)
	}

	luckyBoxService, err := luckybox.NewService(luckybox.ServiceParams{
		TxRunner:      dbClient,
		Repo:          luckybox.NewRepository(dbClient.DB()),
		Loyalty:       loyaltyService,
		Notifications: notificationsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lucky box service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Auth:          authService,
			Register:      registerService,
			Orders:        ordersService,
			Handoff:       handoffService,
			Loyalty:       loyaltyService,
			LuckyBox:      luckyBoxService,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

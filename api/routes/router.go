package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bawabati/bawabati-backend/api/controllers"
	"github.com/bawabati/bawabati-backend/api/middleware"
	"github.com/bawabati/bawabati-backend/internal/auth"
	"github.com/bawabati/bawabati-backend/internal/handoff"
	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/luckybox"
	"github.com/bawabati/bawabati-backend/internal/notifications"
	"github.com/bawabati/bawabati-backend/internal/orders"
	"github.com/bawabati/bawabati-backend/pkg/auth/session"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/bawabati/bawabati-backend/pkg/logger"
	"github.com/bawabati/bawabati-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	Orders        orders.Service
	Handoff       handoff.Service
	Loyalty       loyalty.Service
	LuckyBox      luckybox.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Register, svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(svcs.Orders, logg))
			r.Get("/{orderId}/handoffs", controllers.HandoffHistory(svcs.Handoff, logg))

			r.With(roleOnly(logg, enums.UserRoleCustomer)).
				Post("/", controllers.OrderCreate(svcs.Orders, logg))
			r.With(roleOnly(logg, enums.UserRoleCustomer)).
				Post("/{orderId}/delivery/verify", controllers.HandoffVerify(svcs.Handoff, enums.HandoffPhaseDelivery, logg))

			r.With(roleOnly(logg, enums.UserRoleVendor, enums.UserRoleAdmin)).
				Post("/{orderId}/pickup/codes", controllers.HandoffIssueCodes(svcs.Handoff, enums.HandoffPhasePickup, logg))

			r.With(roleOnly(logg, enums.UserRoleDriver)).
				Post("/{orderId}/claim", controllers.OrderClaim(svcs.Orders, logg))
			r.With(roleOnly(logg, enums.UserRoleDriver)).
				Post("/{orderId}/pickup/verify", controllers.HandoffVerify(svcs.Handoff, enums.HandoffPhasePickup, logg))
			r.With(roleOnly(logg, enums.UserRoleDriver, enums.UserRoleAdmin)).
				Post("/{orderId}/delivery/codes", controllers.HandoffIssueCodes(svcs.Handoff, enums.HandoffPhaseDelivery, logg))

			r.With(roleOnly(logg, enums.UserRoleCustomer, enums.UserRoleVendor, enums.UserRoleDriver, enums.UserRoleAdmin)).
				Patch("/{orderId}/status", controllers.OrderUpdateStatus(svcs.Orders, logg))

			r.With(roleOnly(logg, enums.UserRoleAdmin)).
				Post("/{orderId}/assign-driver", controllers.OrderAssignDriver(svcs.Orders, logg))
			r.With(roleOnly(logg, enums.UserRoleAdmin)).
				Post("/{orderId}/handoff/manual", controllers.HandoffManualComplete(svcs.Handoff, logg))
		})

		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/summary", controllers.LoyaltySummary(svcs.Loyalty, logg))
			r.Get("/transactions", controllers.LoyaltyTransactions(svcs.Loyalty, logg))
			r.Get("/referrals", controllers.LoyaltyReferrals(svcs.Loyalty, logg))
			r.Post("/redeem", controllers.LoyaltyRedeem(svcs.Loyalty, logg))
		})

		r.Route("/lucky-boxes", func(r chi.Router) {
			r.Get("/", controllers.LuckyBoxList(svcs.LuckyBox, logg))
			r.Get("/wins", controllers.LuckyBoxWins(svcs.LuckyBox, logg))
			r.With(roleOnly(logg, enums.UserRoleCustomer)).
				Post("/{boxId}/claim", controllers.LuckyBoxClaim(svcs.LuckyBox, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Get("/", controllers.LuckyBoxListAll(svcs.LuckyBox, logg))
				r.Post("/", controllers.LuckyBoxCreate(svcs.LuckyBox, logg))
				r.Put("/{boxId}", controllers.LuckyBoxUpdate(svcs.LuckyBox, logg))
				r.Post("/{boxId}/deactivate", controllers.LuckyBoxDeactivate(svcs.LuckyBox, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.NotificationsMarkRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(svcs.Notifications, logg))
		})
	})

	return r
}

func roleOnly(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	if len(names) == 1 {
		return middleware.RequireRole(names[0], logg)
	}
	return middleware.RequireAnyRole(logg, names...)
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/remitflow-backend/api/controllers"
	"github.com/angelmondragon/remitflow-backend/api/middleware"
	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/internal/auth"
	"github.com/angelmondragon/remitflow-backend/internal/commissions"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/internal/stock"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/internal/users"
	"github.com/angelmondragon/remitflow-backend/pkg/auth/session"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/remitflow-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP surface uses.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	middleware.RateLimitStore
}

// Dependencies collects everything the router hands to controllers.
type Dependencies struct {
	DB            db.Pinger
	Redis         RedisStore
	Sessions      session.AccessSessionChecker
	Metrics       prometheus.Gatherer
	Auth          auth.Service
	Users         users.Service
	Transfers     transfers.Service
	Commissions   commissions.Service
	BulkPromoter  controllers.BulkPromoter
	Stock         stock.Service
	Notifications notifications.Service
	Audit         audit.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS),
		middleware.ClientIP(),
	)

	var (
		rateLimitStore   middleware.RateLimitStore
		idempotencyStore pkgredis.IdempotencyStore
		redisPinger      pkgredis.Pinger
	)
	if deps.Redis != nil {
		rateLimitStore = deps.Redis
		idempotencyStore = deps.Redis
		redisPinger = deps.Redis
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateLimitStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", controllers.TransferCreate(deps.Transfers, logg))
			r.Get("/", controllers.TransferList(deps.Transfers, logg))
			r.With(middleware.RequireManager(logg)).Get("/pending", controllers.TransferPending(deps.Transfers, logg))
			r.Get("/{transferId}", controllers.TransferDetail(deps.Transfers, logg))
			r.Post("/{transferId}/promote", controllers.TransferPromote(deps.Transfers, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireManager(logg))
				r.Post("/{transferId}/validate", controllers.TransferValidate(deps.Transfers, logg))
				r.Post("/{transferId}/reject", controllers.TransferReject(deps.Transfers, logg))
				r.Post("/{transferId}/execute", controllers.TransferExecute(deps.Transfers, logg))
			})
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/preview", controllers.CommissionPreview(deps.Commissions, logg))
			r.Get("/overview", controllers.CommissionOverview(deps.Commissions, logg))
			r.Route("/configs", func(r chi.Router) {
				r.Get("/", controllers.CommissionConfigList(deps.Commissions, logg))
				r.Get("/{configId}", controllers.CommissionConfigDetail(deps.Commissions, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager(logg))
					r.Post("/", controllers.CommissionConfigCreate(deps.Commissions, logg))
					r.Put("/{configId}", controllers.CommissionConfigUpdate(deps.Commissions, logg))
					r.Post("/{configId}/toggle", controllers.CommissionConfigToggle(deps.Commissions, logg))
					r.Post("/{configId}/promote-drafts", controllers.CommissionPromoteDrafts(deps.BulkPromoter, logg))
				})
			})
		})

		r.Route("/stock", func(r chi.Router) {
			r.Use(middleware.RequireManager(logg))
			r.Get("/stocks", controllers.StockList(deps.Stock, logg))
			r.Post("/stocks", controllers.StockCreate(deps.Stock, logg))
			r.Get("/stocks/{stockId}", controllers.StockDetail(deps.Stock, logg))
			r.Post("/stocks/{stockId}/movements", controllers.StockMovementCreate(deps.Stock, logg))
			r.Post("/deposits", controllers.StockDeposit(deps.Stock, logg))
			r.Get("/movements", controllers.StockMovementList(deps.Stock, logg))
			r.Route("/rates", func(r chi.Router) {
				r.Get("/", controllers.ExchangeRateList(deps.Stock, logg))
				r.Post("/", controllers.ExchangeRateCreate(deps.Stock, logg))
				r.Get("/history", controllers.ExchangeRateHistory(deps.Stock, logg))
				r.Put("/{rateId}", controllers.ExchangeRateUpdate(deps.Stock, logg))
				r.Post("/{rateId}/toggle", controllers.ExchangeRateToggle(deps.Stock, logg))
				r.With(middleware.RequireSuperuser(logg)).Delete("/{rateId}", controllers.ExchangeRateDelete(deps.Stock, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UserMe(deps.Users, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireManager(logg))
				r.Get("/", controllers.UserList(deps.Users, logg))
				r.Post("/", controllers.UserCreate(deps.Users, logg))
				r.Get("/{userId}", controllers.UserDetail(deps.Users, logg))
				r.Post("/{userId}/toggle", controllers.UserToggle(deps.Users, logg))
			})
		})

		r.With(middleware.RequireManager(logg)).Get("/audit", controllers.AuditList(deps.Audit, logg))
	})

	return r
}

package routes

import (
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/controllers"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/repository"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Setup builds the HTTP router. auth verifies bearer tokens and users
// resolves token subjects to stored profiles. Services are taken from their
// global instances, which must be initialized first.
func Setup(cfg *config.Config, auth gin.HandlerFunc, users repository.UserRepository) *gin.Engine {
	controllers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestLogger())
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/uploads/"})))
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Files written by the local fallback store
	router.GET("/uploads/:filename", controllers.GetUploadedFile)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.HealthCheck)
		v1.GET("/database/status", controllers.DatabaseStatus)
	}

	authed := v1.Group("", auth, middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	{
		authed.POST("/users", controllers.CreateUser)
		authed.GET("/users/me", controllers.GetMyProfile)
		authed.PUT("/users/me", controllers.UpdateMyProfile)
	}

	api := authed.Group("", middleware.RequireActor(users))
	{
		api.POST("/orders", controllers.CreateOrder)
		api.GET("/orders", controllers.ListOrders)
		api.GET("/orders/:id", controllers.GetOrder)
		api.PUT("/orders/:id", controllers.UpdateOrderStatus)
		api.POST("/orders/:id/quotation", controllers.CreateQuotation)
		api.PUT("/orders/:id/quotation", controllers.RespondToQuotation)

		api.POST("/uploads", controllers.UploadFile)
		api.GET("/files/*key", controllers.GetFile)

		api.GET("/reports/revenue", controllers.GetRevenueReport)
		api.GET("/reports/summary", controllers.GetDashboardSummary)
	}

	return router
}

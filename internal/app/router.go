package app

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-shift-api/internal/handler"
	"github.com/noah-isme/sma-shift-api/internal/middleware"
	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/pkg/config"
	"github.com/noah-isme/sma-shift-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-shift-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-shift-api/pkg/middleware/requestid"
)

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS))
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(middleware.WithResponseMeta())

	deps := map[string]handler.Pinger{"postgres": a.DB}
	if a.Redis != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(a.Metrics, deps)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	templates := handler.NewShiftTemplateHandler(a.Templates, a.Runner, nil)
	if a.Reports != nil {
		templates = handler.NewShiftTemplateHandler(a.Templates, a.Runner, a.Reports)
	}

	api := r.Group(a.Config.APIPrefix)
	// Signed links carry their own authorization.
	api.GET(ReportDownloadPath+"/:token", templates.DownloadReport)

	secured := api.Group("/shift-templates")
	secured.Use(middleware.JWT(a.Tokens), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	secured.POST("", templates.Create)
	secured.GET("", templates.List)
	secured.POST("/cleanup", templates.Cleanup)
	secured.GET("/runs/latest", templates.LatestRun)
	secured.GET("/:id", templates.Get)
	secured.PATCH("/:id", templates.Update)
	secured.POST("/:id/exclusions", templates.ExcludeDate)
	secured.POST("/:id/generate", templates.Generate)

	return r
}

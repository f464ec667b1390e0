package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/mileage-api/internal/handler"
	"github.com/noah-isme/mileage-api/internal/middleware"
	"github.com/noah-isme/mileage-api/internal/models"
	"github.com/noah-isme/mileage-api/internal/repository"
	"github.com/noah-isme/mileage-api/internal/service"
	"github.com/noah-isme/mileage-api/pkg/config"
)

type routeHandlers struct {
	auth    *handler.AuthHandler
	mileage *handler.MileageHandler
	metrics *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, auth *service.AuthService, audit *repository.UserRepository, metrics *service.MetricsService, h routeHandlers) {
	if metrics != nil {
		r.Use(middleware.Metrics(metrics, "/metrics", "/health"))
	}

	r.GET("/health", h.metrics.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", h.auth.Login)
	api.GET("/files/:token", middleware.Audit(audit, models.AuditActionPhotoDownload, "mileage_photo"), h.mileage.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))
	secured.GET("/auth/me", h.auth.Me)

	mileage := secured.Group("/mileage")
	mileage.GET("/today", h.mileage.Today)
	mileage.GET("/summary", h.mileage.Summary)
	mileage.GET("/trainers", h.mileage.Trainers)
	mileage.GET("/export", h.mileage.Export)
	mileage.GET("", h.mileage.List)
	mileage.POST("", h.mileage.Create)
	mileage.GET("/:id", h.mileage.Get)
	mileage.PUT("/:id", h.mileage.Update)
	mileage.PATCH("/:id/status", middleware.RequireRoles(models.AdminRoles...), h.mileage.OverrideStatus)
}

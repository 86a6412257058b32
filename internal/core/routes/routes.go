package routes

import (
	"github.com/cpusmsng/vercajch/internal/core/container"
	"github.com/cpusmsng/vercajch/internal/middleware"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

func RegisterPublicRoutes(router *gin.Engine, container *container.Container) {
	container.LoginHandler.RegisterRoutes(router)
}

func RegisterProtectedRoutes(router *gin.Engine, container *container.Container) {
	protectedRoutes := router.Group("/api")
	protectedRoutes.Use(security.JWTMiddleware())

	container.EquipmentHandler.RegisterRoutes(protectedRoutes)
	container.TransferHandler.RegisterRoutes(protectedRoutes)
	container.CheckoutHandler.RegisterRoutes(protectedRoutes)
	container.UserHandler.RegisterRoutes(protectedRoutes)
	container.AuditLogHandler.RegisterRoutes(protectedRoutes)

	protectedRoutes.GET("/ws", container.EventHub.ServeWS)
}

func RegisterUtilityRoutes(router *gin.Engine) {
	router.GET("/health", middleware.HealthCheckMiddleware())
}

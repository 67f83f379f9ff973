// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/database"
	"instrument-service/internal/handler"
	"instrument-service/internal/middleware"
	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config      *config.Config
	logger      *zap.Logger
	db          *database.DB
	instruments *service.InstrumentService
	oven        *service.OvenService
	eventBus    *handler.EventBus
}

// NewRouter creates a new router instance. oven may be nil when the
// controller is disabled.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	instruments *service.InstrumentService,
	oven *service.OvenService,
	eventBus *handler.EventBus,
) *Router {
	return &Router{
		config:      config,
		logger:      logger,
		db:          db,
		instruments: instruments,
		oven:        oven,
		eventBus:    eventBus,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.instruments, r.config, r.logger)
	instrumentHandler := handler.NewInstrumentHandler(r.instruments, r.logger)
	ovenHandler := handler.NewOvenHandler(r.oven, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.eventBus, r.logger)

	root := router.Group("")
	healthHandler.RegisterRoutes(root)

	apiV1 := router.Group("/api/v1")
	instrumentHandler.RegisterRoutes(apiV1)
	ovenHandler.RegisterRoutes(apiV1)

	ws := router.Group("/ws")
	wsHandler.RegisterRoutes(ws)

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found", nil)
	})
}

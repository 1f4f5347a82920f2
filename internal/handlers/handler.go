package handlers

import (
	"smarthome/internal/logger"
	"smarthome/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Fake OAuth pages used during account linking
	router.GET("/login", h.loginPage)
	router.POST("/login", h.loginSubmit)
	router.GET("/fakeauth", h.fakeAuth)
	router.POST("/faketoken", h.fakeToken)

	// Admin provisioning accounts
	h.registerAuthRoutes(router)

	// Voice platform fulfillment plus the management endpoints
	h.registerSmartHomeRoutes(router)

	// Live device state stream (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerSmartHomeRoutes(r *gin.Engine) {
	// The bare fulfillment endpoint authenticates by linked account token,
	// not by admin JWT.
	r.POST("/smarthome", h.fulfillment)

	mgmt := r.Group("/smarthome", h.corsMiddleware, h.adminMiddleware)
	{
		mgmt.POST("/create", h.createDevice)
		mgmt.POST("/update", h.updateDevice)
		mgmt.POST("/delete", h.deleteDevice)
		// Preflights are answered by corsMiddleware before the JWT check.
		mgmt.OPTIONS("/create", h.preflight)
		mgmt.OPTIONS("/update", h.preflight)
		mgmt.OPTIONS("/delete", h.preflight)
	}
}

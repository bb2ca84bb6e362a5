package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
)

// Handlers groups every endpoint handler
type Handlers struct {
	Users         *UserHandler
	Interests     *OwnedHandler[model.AreaOfInterest]
	WorkDistances *OwnedHandler[model.WorkDistance]
	Documents     *DocumentHandler
	Tokens        *TokenHandler
	Health        *HealthHandler
}

// RegisterRoutes mounts the API on e. auth guards every route that needs a caller.
func RegisterRoutes(e *echo.Echo, h *Handlers, auth echo.MiddlewareFunc) {
	// Public routes - no authentication required
	e.GET("/health", h.Health.HealthCheck)
	e.GET("/metrics", MetricsHandler)

	api := e.Group("/api")

	// Token routes
	token := api.Group("/token")
	token.POST("/", h.Tokens.Obtain)
	token.POST("/refresh/", h.Tokens.Refresh)
	token.POST("/blacklist/", h.Tokens.Blacklist)

	// Account routes
	api.POST("/signup/", h.Users.Signup)
	user := api.Group("/user")
	user.GET("/list/", h.Users.List)
	user.POST("/signup/", h.Users.Signup)
	user.GET("/find/", h.Users.Find)
	user.POST("/create/", h.Users.Create, auth)

	interests := user.Group("/area-interest", auth)
	interests.GET("/", h.Interests.List)
	interests.POST("/", h.Interests.Create)
	interests.GET("/:id/", h.Interests.Retrieve)
	interests.PUT("/:id/", h.Interests.Update)
	interests.PATCH("/:id/", h.Interests.Patch)
	interests.DELETE("/:id/", h.Interests.Delete)

	distances := user.Group("/work-distance", auth)
	distances.GET("/", h.WorkDistances.List)
	distances.POST("/", h.WorkDistances.Create)
	distances.GET("/:id/", h.WorkDistances.Retrieve)
	distances.PUT("/:id/", h.WorkDistances.Update)
	distances.PATCH("/:id/", h.WorkDistances.Patch)
	distances.DELETE("/:id/", h.WorkDistances.Delete)

	documents := user.Group("/document", auth)
	documents.GET("/", h.Documents.List)
	documents.POST("/", h.Documents.Create)
	documents.GET("/:id/", h.Documents.Retrieve)
	documents.PUT("/:id/", h.Documents.Update)
	documents.PATCH("/:id/", h.Documents.Patch)
	documents.DELETE("/:id/", h.Documents.Delete)
	documents.GET("/:id/file/", h.Documents.File)

	// Account detail routes
	user.GET("/:id/", h.Users.Retrieve, auth)
	user.PUT("/:id/", h.Users.Update, auth)
	user.PATCH("/:id/", h.Users.Patch, auth)
	user.DELETE("/:id/", h.Users.Delete, auth)
}

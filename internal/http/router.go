// Package http is the thin adapter between the transport and the storage
// contract: it parses parameters, calls the provider and serializes JSON.
// Authentication happens upstream; handlers receive an already-verified
// user id.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/accounts"
	"github.com/mrlokans/tempo/internal/analytics"
	"github.com/mrlokans/tempo/internal/storage"
)

type Handlers struct {
	store    storage.Provider
	engine   *analytics.Engine
	accounts *accounts.Service
}

func NewHandlers(store storage.Provider, engine *analytics.Engine, accountsService *accounts.Service) *Handlers {
	return &Handlers{store: store, engine: engine, accounts: accountsService}
}

func NewRouter(h *Handlers) *gin.Engine {
	router := gin.Default()

	router.GET("/health", h.Health)

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/anonymous", h.AnonymousSession)
		auth.POST("/refresh", h.RefreshToken)
		auth.POST("/password-reset/request", h.RequestPasswordReset)
		auth.POST("/password-reset/confirm", h.ResetPassword)
	}

	api := router.Group("/api")
	api.Use(RequireUser())
	{
		api.GET("/categories", h.ListCategories)
		api.POST("/categories", h.CreateCategory)
		api.PUT("/categories/:id", h.UpdateCategory)
		api.DELETE("/categories/:id", h.DeleteCategory)

		api.GET("/timer/active", h.GetActiveEntry)
		api.POST("/timer/start", h.StartEntry)
		api.POST("/timer/stop", h.StopEntry)

		api.GET("/entries", h.ListEntries)
		api.PUT("/entries/:id", h.UpdateEntry)
		api.DELETE("/entries/:id", h.DeleteEntry)
		api.DELETE("/entries", h.DeleteEntriesByDate)

		api.GET("/task-names", h.ListTaskNames)
		api.GET("/task-names/suggestions", h.ListTaskSuggestions)
		api.PUT("/task-names", h.UpdateTaskName)
		api.POST("/task-names/merge", h.MergeTaskNames)

		api.GET("/analytics", h.Analytics)
		api.GET("/analytics/drilldown", h.CategoryDrilldown)

		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		api.GET("/export", h.Export)

		api.DELETE("/account", h.DeleteAccount)
	}

	return router
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

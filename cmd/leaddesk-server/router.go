package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/apikeys"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/importexport"
	"github.com/mikepea/leaddesk/pkg/leaddesk/intake"
	"github.com/mikepea/leaddesk/pkg/leaddesk/leads"
	"github.com/mikepea/leaddesk/pkg/leaddesk/logging"
	"github.com/mikepea/leaddesk/pkg/leaddesk/notify"
	"github.com/mikepea/leaddesk/pkg/leaddesk/rules"
	"github.com/mikepea/leaddesk/pkg/leaddesk/statuses"
	"github.com/mikepea/leaddesk/pkg/leaddesk/users"
	"gorm.io/gorm"
)

// newRouter wires every handler onto a fresh engine
func newRouter(db *gorm.DB, tokens *auth.Tokens) *gin.Engine {
	r := gin.New()
	r.Use(logging.RequestID(), logging.RequestLogger())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "leaddesk",
		})
	})

	// Third-party lead intake (API key auth, envelope responses)
	functions := r.Group("/functions/v1")
	functions.Use(logging.Recovery(intake.PanicResponse))
	intake.NewHandler(intake.NewService(db)).RegisterRoutes(functions)

	// Staff API
	api := r.Group("/api")
	api.Use(logging.Recovery(func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	{
		// Auth routes (public)
		auth.NewHandler(db, tokens).RegisterRoutes(api.Group("/auth"))

		dir := hierarchy.NewDirectory(db)
		staff := api.Group("", auth.AuthMiddleware(tokens))

		users.NewHandler(db, dir).RegisterRoutes(staff)
		leads.NewHandler(db, dir).RegisterRoutes(staff)
		importexport.NewHandler(db, dir).RegisterRoutes(staff)
		statuses.NewHandler(db).RegisterRoutes(staff)
		notify.NewHandler(db).RegisterRoutes(staff)

		// Admin routes
		admin := staff.Group("", auth.RequireAdmin())
		apikeys.NewHandler(db).RegisterRoutes(admin)
		rules.NewHandler(db).RegisterRoutes(admin)
	}

	return r
}

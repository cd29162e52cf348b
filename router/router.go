package router

import (
	"log"

	"calliope/config"
	"calliope/controllers"
	"calliope/middleware"

	"github.com/gin-gonic/gin"
)

// Initialize wires all routes and middlewares.
// Public routes + authenticated routes + "validated" routes (Authorizer).
func Initialize(r *gin.Engine, cfg config.Configuration) {
	controllers.SetJWTSecret(cfg.Security.JwtSecret)

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")

	// Webhook (Telegram) - multi-tenant: /webhook/:userId
	// Mantém /webhook funcionando em dev via env WEBHOOK_DEFAULT_USER_ID
	api.GET("/webhook", controllers.WebhookVerify)
	api.POST("/webhook", controllers.WebhookUpdate)
	api.GET("/webhook/:userId", controllers.WebhookVerify)
	api.POST("/webhook/:userId", controllers.WebhookUpdate)

	// Public (no auth)
	api.POST("/users", Logger(), controllers.CreateUser)
	api.POST("/login", Logger(), controllers.Login)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())

	// Validated routes (token + active user)
	validated := auth.Group("")
	validated.Use(Authorizer())

	validated.GET("/me", Logger(), controllers.Me)

	// Scripts (user)
	validated.GET("/scripts", Logger(), controllers.GetScripts)
	validated.GET("/scripts/:id", Logger(), controllers.GetScriptByID)
	validated.POST("/scripts", Logger(), controllers.CreateScript)
	validated.POST("/scripts/templates/:key", Logger(), controllers.CreateScriptFromTemplate)
	validated.PUT("/scripts/:id", Logger(), controllers.UpdateScript)
	validated.DELETE("/scripts/:id", Logger(), controllers.DeleteScript)

	// Dialogs (user) - transporte direto, sem passar pelo webhook
	validated.POST("/dialogs", Logger(), controllers.StartDialog)
	validated.POST("/dialogs/:id/answer", Logger(), controllers.AnswerDialog)
	validated.DELETE("/dialogs/:id", Logger(), controllers.CancelDialog)

	// Leads (user)
	validated.GET("/leads", Logger(), controllers.GetLeads)
	validated.GET("/leads/:id", Logger(), controllers.GetLeadByID)
	validated.PUT("/leads/:id/status", Logger(), controllers.UpdateLeadStatus)
	validated.PUT("/leads/:id/refs", Logger(), controllers.UpdateLeadRefs)

	// Billing (user)
	validated.GET("/billing/tiers", Logger(), controllers.GetTiers)
	validated.GET("/billing/subscription", Logger(), controllers.GetSubscription)
	validated.POST("/billing/subscription/request", Logger(), controllers.RequestSubscription)
	validated.DELETE("/billing/subscription", Logger(), controllers.CancelSubscription)

	// Dashboard (user)
	validated.GET("/dashboard/metrics", Logger(), controllers.GetDashboardMetrics)
	validated.GET("/dashboard/leads-per-day", Logger(), controllers.GetLeadsPerDay)

	// Admin routes
	admin := validated.Group("")
	admin.Use(Adminizer())

	admin.POST("/admin/subscriptions/:userId/activate", Logger(), controllers.ActivateSubscription)
	admin.GET("/admin/metrics", Logger(), controllers.GetGlobalMetrics)
	admin.GET("/admin/events", Logger(), controllers.GetEvents)
	admin.POST("/admin/alerts", Logger(), controllers.CreateAlert)
	admin.GET("/admin/alerts", Logger(), controllers.GetAlerts)
	admin.PUT("/admin/alerts/:id/resolve", Logger(), controllers.ResolveAlert)

	log.Printf("Routes initialized")
}

package routes

import (
	"github.com/cvcraft/cvcraft/internal/api/handlers"
	"github.com/cvcraft/cvcraft/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	CV         *handlers.CVHandler
	Generation *handlers.GenerationHandler
	Callback   *handlers.CallbackHandler
	WS         *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Worker callback authenticates with a shared secret, not a user JWT
	r.POST("/internal/worker/callback", d.Callback.WorkerCallback)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/cv/me", d.CV.Me)
	auth.PUT("/cv/:cv_id", d.CV.Save)
	auth.PATCH("/cv/:cv_id", d.CV.Patch)
	auth.POST("/cv/:cv_id/upload", d.CV.Upload)
	auth.POST("/cv/:cv_id/reset", d.CV.Reset)

	auth.POST("/cv/:cv_id/generate", d.Generation.Generate)
	auth.POST("/cv/:cv_id/optimize", d.Generation.Optimize)
	auth.GET("/cv/:cv_id/events", d.Generation.Events)
	auth.GET("/cv/:cv_id/preview", d.Generation.Preview)
	auth.GET("/cv/:cv_id/wait", d.WS.WaitForCompletion)

	// WebSocket: realtime change notifications for one aggregate
	auth.GET("/ws/cv/:cv_id", d.WS.CVEvents)

	// Admin-only: inspect any CV's generation trail
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/cv/:cv_id/events", d.Generation.EventsAdmin)
}

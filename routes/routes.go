package routes

import (
	"caseflow-api/controllers"
	"caseflow-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Caseflow API is running",
				})
			})

			// Lightweight progress polling; authorized by monitor token,
			// not by session.
			public.GET("/monitor/:id", controllers.PollJobProgress)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", controllers.GetProfile)

			protected.POST("/uploads", controllers.UploadBatchFile)

			jobs := protected.Group("/batch-jobs")
			{
				jobs.GET("", controllers.ListJobsAndFiles)
				jobs.POST("", controllers.CreateJob)
				jobs.GET("/running", controllers.CheckRunningJob)
				jobs.GET("/template", controllers.DownloadTemplate)
				jobs.DELETE("/:id", controllers.DropJob)
				jobs.POST("/:id/resume", controllers.ResumeJob)
				jobs.GET("/:id/columns", controllers.MapColumns)
				jobs.PUT("/:id/columns", controllers.SaveMapping)
				jobs.POST("/:id/reports/:type", controllers.GenerateReport)
				jobs.GET("/:id/reports/:type", controllers.FetchReport)
				jobs.GET("/:id/rejections/download", controllers.DownloadRejectionReport)
			}
		}
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Endpoint not found"})
	})
}

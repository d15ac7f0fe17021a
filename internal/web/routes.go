package web

import (
	"github.com/gin-gonic/gin"
)

func (app *application) routes() *gin.Engine {
	api := app.Mux.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/version", app.version)

			authed := v1.Group("", app.RequireAPIKey())
			{
				authed.GET("/stats", app.stats)
				authed.POST("/jobs", app.submitJob)
				authed.GET("/jobs", app.listJobs)
				authed.GET("/jobs/:id", app.showJob)
				authed.GET("/jobs/:id/domains", app.jobDomains)
				authed.POST("/jobs/:id/cancel", app.cancelJob)
			}
		}
	}

	return app.Mux
}

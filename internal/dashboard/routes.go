package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found", Code: codeNotFound})
	})

	router.GET("/files/*key", s.handleFile)

	api := router.Group("/api", s.session())

	api.GET("/projects", s.handleProjects)
	api.POST("/projects", s.handleCreateProject)
	api.PATCH("/projects/:id", s.handleUpdateProject)
	api.DELETE("/projects/:id", s.handleDeleteProject)
	api.GET("/projects/:id/issues", s.handleProjectIssues)
	api.POST("/projects/:id/issues", s.handleCreateIssue)
	api.GET("/projects/:id/timeline", s.handleTimeline)
	api.GET("/kpi", s.handleKPI)

	api.GET("/issues", s.handleIssues)
	api.GET("/issues/:id", s.handleIssue)
	api.PATCH("/issues/:id", s.handleUpdateIssue)
	api.DELETE("/issues/:id", s.handleDeleteIssue)
	api.POST("/issues/:id/attachments", s.handleUpload)

	api.GET("/settings/colors", s.handleColors)
	api.PUT("/settings/colors", s.handleSaveColors)

	api.GET("/ui", s.handleUI)
	api.POST("/ui/modal", s.handleOpenModal)
	api.DELETE("/ui/modal", s.handleCloseModal)
	api.POST("/ui/select", s.handleSelect)
	api.PUT("/ui/draft", s.handleDraft)

	api.POST("/refresh", s.handleRefresh)
	api.GET("/events", s.handleSSE)
}

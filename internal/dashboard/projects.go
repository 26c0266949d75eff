package dashboard

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/kpi"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/uistate"
)

// gridResponse is the project grid as the table view renders it. Error is
// set when the rows are last-good data from before a failed fetch.
type gridResponse struct {
	Rows   []kpi.Row `json:"rows"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

func (s *Server) handleProjects(c *gin.Context) {
	ctx := c.Request.Context()
	projects, err := s.client.Projects(ctx)
	if err != nil && !s.fallback(c, "load projects", client.ProjectsKey, err) {
		return
	}
	settings, terr := s.client.Thresholds(ctx)
	if terr != nil && !s.fallback(c, "load colors", client.ThresholdsKey, terr) {
		return
	}
	resp := gridResponse{
		Rows:   kpi.RenderGrid(projects, settings),
		Status: string(s.client.Cache().Peek(client.ProjectsKey).Status),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleKPI(c *gin.Context) {
	ctx := c.Request.Context()
	projects, err := s.client.Projects(ctx)
	if err != nil && !s.fallback(c, "load projects", client.ProjectsKey, err) {
		return
	}
	settings, err := s.client.Thresholds(ctx)
	if err != nil && !s.fallback(c, "load colors", client.ThresholdsKey, err) {
		return
	}
	c.JSON(http.StatusOK, kpi.Summarize(projects, settings))
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var p models.Project
	if err := c.ShouldBindJSON(&p); err != nil {
		s.fail(c, "create project", badRequest(err))
		return
	}
	created, err := s.client.CreateProject(c.Request.Context(), p)
	if err != nil {
		s.fail(c, "create project", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var patch models.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, "update project", badRequest(err))
		return
	}
	updated, err := s.client.UpdateProject(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, "update project", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.DeleteProject(c.Request.Context(), id); err != nil {
		s.fail(c, "delete project", err)
		return
	}
	s.forget(c, id)
	c.Status(http.StatusNoContent)
}

// forget drops the caller's selection of a deleted record. The delete has
// already succeeded, so a session failure is only logged.
func (s *Server) forget(c *gin.Context, id string) {
	_, err := s.update(c, func(st *uistate.Store) error {
		st.RecordDeleted(id)
		return nil
	})
	if err != nil {
		log.Printf("dashboard: forget %s: %v", id, err)
	}
}

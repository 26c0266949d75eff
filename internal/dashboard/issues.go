package dashboard

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/attachment"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/timeline"
)

func (s *Server) handleIssues(c *gin.Context) {
	issues, err := s.client.Issues(c.Request.Context())
	if err != nil && !s.fallback(c, "load issues", client.IssuesKey, err) {
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (s *Server) handleProjectIssues(c *gin.Context) {
	id := c.Param("id")
	issues, err := s.client.ProjectIssues(c.Request.Context(), id)
	if err != nil && !s.fallback(c, "load issues", client.ProjectIssuesKey(id), err) {
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (s *Server) handleIssue(c *gin.Context) {
	issue, err := s.client.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	var is models.Issue
	if err := c.ShouldBindJSON(&is); err != nil {
		s.fail(c, "create issue", badRequest(err))
		return
	}
	is.ProjectID = c.Param("id")
	created, err := s.client.CreateIssue(c.Request.Context(), is)
	if err != nil {
		s.fail(c, "create issue", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateIssue(c *gin.Context) {
	var patch models.IssuePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, "update issue", badRequest(err))
		return
	}
	updated, err := s.client.UpdateIssue(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, "update issue", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteIssue(c *gin.Context) {
	id := c.Param("id")
	if err := s.client.DeleteIssue(c.Request.Context(), id); err != nil {
		s.fail(c, "delete issue", err)
		return
	}
	s.forget(c, id)
	c.Status(http.StatusNoContent)
}

// handleUpload stores the multipart "file" field and records it on the
// issue, as an image or a plain file depending on its sniffed type. The
// stored blob is removed again when the issue update fails.
func (s *Server) handleUpload(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, "upload attachment", badRequest(err))
		return
	}
	if _, err := s.client.Issue(ctx, id); err != nil {
		s.fail(c, "upload attachment", err)
		return
	}
	body, err := fh.Open()
	if err != nil {
		s.fail(c, "upload attachment", badRequest(err))
		return
	}
	defer body.Close()

	file, err := s.files.Save(ctx, attachment.Upload{IssueID: id, Name: fh.Filename, Body: body})
	if err != nil {
		s.fail(c, "upload attachment", err)
		return
	}
	updated, err := s.client.UpdateIssue(ctx, id, attachment.Attach(file))
	if err != nil {
		if derr := s.files.Discard(context.WithoutCancel(ctx), file); derr != nil {
			log.Printf("dashboard: discard %s: %v", file.URL, derr)
		}
		s.fail(c, "upload attachment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": file, "issue": updated})
}

func (s *Server) handleFile(c *gin.Context) {
	rc, obj, err := s.files.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.abort(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, rc, nil)
}

// handleTimeline lays out a project's issues. Query parameters: mode
// (data or today) and today (YYYY-MM-DD, default the server's date).
func (s *Server) handleTimeline(c *gin.Context) {
	opts := s.timeline
	opts.Today = s.now()
	if q := c.Query("today"); q != "" {
		t, err := time.Parse(models.DateLayout, q)
		if err != nil {
			s.abort(c, badRequest(err))
			return
		}
		opts.Today = t
	}
	switch mode := timeline.Mode(c.DefaultQuery("mode", string(timeline.ModeData))); mode {
	case timeline.ModeData, timeline.ModeToday:
		opts.Mode = mode
	default:
		s.abort(c, badRequest(errors.New("mode must be data or today")))
		return
	}

	id := c.Param("id")
	issues, err := s.client.ProjectIssues(c.Request.Context(), id)
	if err != nil && !s.fallback(c, "load issues", client.ProjectIssuesKey(id), err) {
		return
	}
	c.JSON(http.StatusOK, timeline.Layout(timeline.FromIssues(issues), opts))
}

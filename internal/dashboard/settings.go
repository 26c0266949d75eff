package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/client"
	"github.com/zulandar/kpiboard/internal/threshold"
	"github.com/zulandar/kpiboard/internal/uistate"
)

func (s *Server) handleColors(c *gin.Context) {
	settings, err := s.client.Thresholds(c.Request.Context())
	if err != nil && !s.fallback(c, "load colors", client.ThresholdsKey, err) {
		return
	}
	c.JSON(http.StatusOK, settings)
}

// handleSaveColors replaces the process-wide thresholds wholesale and
// persists them. Every session classifies with them from the next request.
func (s *Server) handleSaveColors(c *gin.Context) {
	var settings threshold.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		s.fail(c, "save colors", badRequest(err))
		return
	}
	if err := threshold.Validate(settings); err != nil {
		s.fail(c, "save colors", badRequest(err))
		return
	}
	if err := s.client.SaveThresholds(c.Request.Context(), settings); err != nil {
		s.fail(c, "save colors", err)
		return
	}
	st, err := s.update(c, func(st *uistate.Store) error {
		return st.ReplaceThresholds(settings)
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Thresholds)
}

func (s *Server) handleUI(c *gin.Context) {
	st, err := s.state(c)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type modalRequest struct {
	Modal    string             `json:"modal"`
	Selected *uistate.Selection `json:"selected"`
}

func (s *Server) handleOpenModal(c *gin.Context) {
	var req modalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, badRequest(err))
		return
	}
	st, err := s.update(c, func(st *uistate.Store) error {
		if err := st.OpenModal(req.Modal, req.Selected); err != nil {
			return badRequest(err)
		}
		return nil
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleCloseModal(c *gin.Context) {
	st, err := s.update(c, func(st *uistate.Store) error {
		st.CloseModal()
		return nil
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type selectRequest struct {
	Selected *uistate.Selection `json:"selected"`
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, badRequest(err))
		return
	}
	if req.Selected != nil && req.Selected.ID == "" {
		s.abort(c, badRequest(errors.New("selected.id is required")))
		return
	}
	st, err := s.update(c, func(st *uistate.Store) error {
		st.Select(req.Selected)
		return nil
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type draftRequest struct {
	Draft string `json:"draft"`
}

func (s *Server) handleDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, badRequest(err))
		return
	}
	st, err := s.update(c, func(st *uistate.Store) error {
		st.SetDraft(req.Draft)
		return nil
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.client.Refresh(c.Request.Context()); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/uistate"
)

// sessionCookie names the cookie that carries the UI session ID.
const sessionCookie = "kb_session"

// session assigns every API caller a UI session, issuing a cookie on first
// contact.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			id = uistate.NewID()
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(sessionCookie, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionCookie)
}

// state returns the caller's current UI state.
func (s *Server) state(c *gin.Context) (uistate.State, error) {
	st, err := s.sessions.Open(c.Request.Context(), sessionID(c))
	if err != nil {
		return uistate.State{}, err
	}
	return st.State(), nil
}

// update applies fn to the caller's UI state and persists it.
func (s *Server) update(c *gin.Context, fn func(*uistate.Store) error) (uistate.State, error) {
	return s.sessions.Update(c.Request.Context(), sessionID(c), fn)
}

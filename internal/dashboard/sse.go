package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// notice reports a failed mutation to every connected dashboard.
type notice struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
	At      time.Time `json:"at"`
}

// noticeHub fans notices out to SSE listeners. Slow listeners miss notices
// rather than block the request that failed.
type noticeHub struct {
	mu   sync.Mutex
	subs map[chan notice]struct{}
}

func newNoticeHub() *noticeHub {
	return &noticeHub{subs: make(map[chan notice]struct{})}
}

func (h *noticeHub) subscribe() (<-chan notice, func()) {
	ch := make(chan notice, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *noticeHub) publish(n notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// handleSSE streams cache change events and failed-mutation notices until
// the client disconnects.
func (s *Server) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events, stopEvents := s.client.Cache().Subscribe(nil)
	defer stopEvents()
	notices, stopNotices := s.notices.subscribe()
	defer stopNotices()

	writeSSE(c.Writer, "connected", map[string]string{"session": sessionID(c)})
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c.Writer, "cache", ev)
		case n, ok := <-notices:
			if !ok {
				return
			}
			writeSSE(c.Writer, "notice", n)
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": s.now().UTC().Format(time.RFC3339),
			})
		}
		c.Writer.Flush()
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kpiboard/internal/cache"
	"github.com/zulandar/kpiboard/internal/store"
)

// Error codes carried in the "code" field of error responses.
const (
	codeValidation = "validation"
	codeNotFound   = "not_found"
	codeTransient  = "transient"
	codeInternal   = "internal"
)

// errBadRequest marks malformed requests rejected before reaching the store.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// statusOf maps an error onto an HTTP status and error code.
func statusOf(err error) (int, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, codeValidation
	}
	switch store.Kind(err) {
	case store.ErrValidation:
		return http.StatusBadRequest, codeValidation
	case store.ErrNotFound:
		return http.StatusNotFound, codeNotFound
	case store.ErrTransient:
		return http.StatusServiceUnavailable, codeTransient
	}
	if errors.Is(err, cache.ErrSuperseded) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, codeTransient
	}
	return http.StatusInternalServerError, codeInternal
}

// abort writes err as a JSON error response.
func (s *Server) abort(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Code: code})
}

// fail reports a failed operation to SSE listeners and writes the error.
func (s *Server) fail(c *gin.Context, op string, err error) {
	s.notify(op, err)
	s.abort(c, err)
}

func (s *Server) notify(op string, err error) {
	_, code := statusOf(err)
	s.notices.publish(notice{Op: op, Message: err.Error(), Code: code, At: s.now().UTC()})
}

// Headers set on a read answered with last-good data after a failed fetch.
const (
	headerDataStatus = "X-Data-Status"
	headerDataError  = "X-Data-Error"
)

// fallback handles a failed read of key. When the cache still holds
// last-good data it publishes a notice, marks the response and returns true
// so the caller renders that data. Otherwise it writes the error.
func (s *Server) fallback(c *gin.Context, op string, key cache.Key, err error) bool {
	if c.Request.Context().Err() != nil || !s.client.Cache().Peek(key).HasData {
		s.fail(c, op, err)
		return false
	}
	log.Printf("dashboard: %s: serving last-good data: %v", op, err)
	s.notify(op, err)
	c.Header(headerDataStatus, string(cache.StatusError))
	c.Header(headerDataError, err.Error())
	return true
}

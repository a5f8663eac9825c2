package server

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/server/middleware"
	"github.com/kbukum/extkit/sse"
)

// EventsHandler streams instantiated events from hub. The optional
// ?extension= query is a glob over extension keys.
func EventsHandler(hub *sse.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := c.Query("extension")
		if _, err := filepath.Match(filter, ""); err != nil {
			RespondWithError(c, apperrors.InvalidInput("extension", "malformed glob pattern"))
			return
		}
		// Request ids are caller-supplied and may repeat, so every stream
		// gets its own hub key.
		clientID := uuid.NewString()
		logger.WithComponent("server").Debug("Opening event stream", logger.Fields(
			"request_id", c.GetString(middleware.RequestIDKey), "client_id", clientID, "filter", filter))
		sse.ServeSSE(hub, c.Writer, c.Request, clientID, filter)
	}
}

// MountEvents registers GET /events on the server's engine.
func (s *Server) MountEvents(hub *sse.Hub) {
	s.engine.GET("/events", EventsHandler(hub))
}

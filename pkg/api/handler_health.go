package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health. Unauthenticated and minimal by design
// — it is polled by orchestrators and must not leak internal state
// (tarsy's pkg/api/handler_health.go follows the same "safe for
// unauthenticated access" rule).
func (s *Server) healthHandler(c *echo.Context) error {
	online := 0
	if s.dispatcher != nil {
		online = len(s.dispatcher.ListOnlineAgents())
	}
	return c.JSON(http.StatusOK, &healthResponse{
		Status:       "healthy",
		AgentsOnline: online,
	})
}

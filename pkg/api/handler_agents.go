package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	agents, err := s.store.ListAgents(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]agentSummary, len(agents))
	for i, a := range agents {
		out[i] = agentSummary{
			ID:      a.ID,
			Name:    a.Name,
			Status:  string(a.Status),
			Online:  s.dispatcher != nil && s.dispatcher.IsOnline(a.Name),
			OS:      a.OS,
			Version: a.AgentVersion,
		}
	}

	return c.JSON(http.StatusOK, &listAgentsResponse{Agents: out})
}

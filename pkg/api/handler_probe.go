package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/sondehub/hub/pkg/herr"
)

// executeProbeHandler handles POST /api/v1/probes/execute.
func (s *Server) executeProbeHandler(c *echo.Context) error {
	var req executeProbeRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(herr.Validationf("invalid request body: %v", err))
	}
	if req.Probe == "" {
		return mapServiceError(herr.Validationf("probe is required"))
	}

	result, err := s.router.Execute(c.Request().Context(), req.Probe, req.Params, req.Agent, apiKeyIDFromContext(c))
	if err != nil {
		return mapServiceError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordProbe(req.Probe, result.Status, time.Duration(result.DurationMs)*time.Millisecond)
	}

	return c.JSON(http.StatusOK, result)
}

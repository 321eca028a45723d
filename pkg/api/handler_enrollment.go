package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sondehub/hub/pkg/herr"
)

// createEnrollmentTokenHandler handles POST /api/v1/enrollment/tokens.
func (s *Server) createEnrollmentTokenHandler(c *echo.Context) error {
	var req createEnrollmentTokenRequest
	if err := c.Bind(&req); err != nil {
		req = createEnrollmentTokenRequest{}
	}

	tok, err := s.enrollment.CreateToken(c.Request().Context(), req.ttl())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, tok)
}

// consumeEnrollmentTokenHandler handles POST /api/v1/enrollment/consume.
// Not gated by apiKeyAuth: the caller is an agent that has only a one-shot
// enrollment token, not yet a certificate or an API key.
func (s *Server) consumeEnrollmentTokenHandler(c *echo.Context) error {
	var req consumeEnrollmentTokenRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(herr.Validationf("invalid request body: %v", err))
	}
	if req.Token == "" || req.AgentName == "" {
		return mapServiceError(herr.Validationf("token and agent_name are required"))
	}

	result, err := s.enrollment.Consume(c.Request().Context(), req.Token, req.AgentName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, result)
}

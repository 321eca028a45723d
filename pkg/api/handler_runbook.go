package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// runRunbookHandler handles POST /api/v1/runbooks/:category/run.
func (s *Server) runRunbookHandler(c *echo.Context) error {
	category := c.Param("category")

	var req runRunbookRequest
	if err := c.Bind(&req); err != nil {
		req = runRunbookRequest{}
	}

	result, err := s.runbooks.Run(c.Request().Context(), category, req.Params, req.Agent)
	if err != nil {
		return mapServiceError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordRunbook(category)
	}

	return c.JSON(http.StatusOK, result)
}

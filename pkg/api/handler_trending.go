package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// trendingSinceParam parses the optional ?since_minutes= query param,
// defaulting to a 24-hour lookback (spec.md §4.I rolling window default).
func trendingSinceParam(c *echo.Context) time.Time {
	const defaultWindow = 24 * time.Hour
	if raw := c.QueryParam("since_minutes"); raw != "" {
		if minutes, err := time.ParseDuration(raw + "m"); err == nil {
			return time.Now().Add(-minutes)
		}
	}
	return time.Now().Add(-defaultWindow)
}

func (s *Server) trendingByProbeHandler(c *echo.Context) error {
	if s.tracker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "trending not configured")
	}
	probe := c.Param("probe")
	agg, err := s.tracker.AggregateByProbe(c.Request().Context(), probe, trendingSinceParam(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

func (s *Server) trendingByAgentHandler(c *echo.Context) error {
	if s.tracker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "trending not configured")
	}
	agent := c.Param("agent")
	agg, err := s.tracker.AggregateByAgent(c.Request().Context(), agent, trendingSinceParam(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

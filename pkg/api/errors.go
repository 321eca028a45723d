package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sondehub/hub/pkg/herr"
)

// mapServiceError maps the structured pkg/herr taxonomy to HTTP error
// responses, generalising tarsy's pkg/api/errors.go mapServiceError from a
// fixed sentinel-error switch to a Kind-based one.
func mapServiceError(err error) *echo.HTTPError {
	switch herr.KindOf(err) {
	case herr.KindValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case herr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case herr.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case herr.KindUnauthed:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case herr.KindForbidden:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case herr.KindTimeout:
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	case herr.KindUnreachable:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	slog.Error("unexpected internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

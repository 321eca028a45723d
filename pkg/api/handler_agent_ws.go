package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// agentWSHandler upgrades an agent's inbound connection and hands it to the
// dispatcher, generalising tarsy's pkg/api/handler_ws.go coder/websocket
// upgrade to the hub's agent-session registration (spec.md §2 "WebSocket
// upgrade -> Dispatcher registers session").
//
// Origin checking is intentionally skipped: agents dial over mTLS with a
// client certificate, not from a browser, so there is no origin header to
// validate against. The same TLS listener also serves the API.
func (s *Server) agentWSHandler(c *echo.Context) error {
	if s.verifyAgent == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent dial-in not configured")
	}

	agentName, pubKey, err := s.verifyAgent(c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "client certificate not recognised")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	if pubKey != nil {
		s.dispatcher.RegisterAgentKey(agentName, pubKey)
	}

	ctx := c.Request().Context()
	s.dispatcher.OnConnect(ctx, agentName, conn)
	defer s.dispatcher.OnDisconnect(agentName)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}
		s.dispatcher.HandleInbound(agentName, data)
	}
}

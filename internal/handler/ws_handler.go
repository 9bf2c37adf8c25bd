package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/response"
	"github.com/examsaathi/backend/internal/service"
	ws "github.com/examsaathi/backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live session: timer ticks and the submission event
// go out, navigation and answer actions come in.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/sessions/:id/stream?token=<jwt>
// Sends the current state on connect, then ticks until submission.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	owner, id := claims.Phone, c.Param("id")

	// Subscribe before upgrading so an unknown session is a plain 404.
	events, cancel, err := h.sessionService.Subscribe(owner, id)
	if err != nil {
		status, code := sessionErrorStatus(err)
		response.Fail(c, status, code)
		return
	}
	defer cancel()

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := ws.NewConn(raw)

	wsLog := h.log.With().Str("session_id", id).Logger()
	wsLog.Info().Msg("Session stream connected")

	if view, err := h.sessionService.View(owner, id); err == nil {
		conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: view})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if err := conn.WriteTyped(ws.FromEngine(ev)); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		}
		// Channel closed: the session was submitted, left or reaped.
		conn.CloseNormal("session ended")
	}()

	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.handleAction(conn, wsLog, owner, id, msg)
	}

	cancel()
	<-done
}

func (h *WSHandler) handleAction(conn *ws.Conn, wsLog zerolog.Logger, owner, id string, msg ws.Request) {
	switch msg.Action {
	case ws.ActionPing:
		conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionSubmit:
		// The submitted event reaches the client through the subscription.
		if _, err := h.sessionService.Submit(owner, id); err != nil {
			h.writeSessionError(conn, err)
		}
		return
	}

	op, err := msg.Operation()
	if err != nil {
		if errors.Is(err, ws.ErrMissingArgs) {
			conn.WriteError(string(response.ErrValidation), "missing arguments for "+string(msg.Action))
			return
		}
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return
	}

	view, err := h.sessionService.Apply(owner, id, op)
	if err != nil {
		h.writeSessionError(conn, err)
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: view})
}

func (h *WSHandler) writeSessionError(conn *ws.Conn, err error) {
	_, code := sessionErrorStatus(err)
	conn.WriteError(string(code), response.GetMessage(code))
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/service"
	ws "github.com/stemsi/prairie-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
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

// WSHandler serves the external grading socket. It is not behind user auth:
// every request carries a variant token instead.
type WSHandler struct {
	bridge   *service.GradingBridgeService
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(bridge *service.GradingBridgeService, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		bridge:   bridge,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExternalGradingStream godoc
// WS /ws/v1/external-grading
// Clients send init to subscribe to a variant and getResults to fetch
// rendered panels; change:status events are pushed as grading progresses.
func (h *WSHandler) ExternalGradingStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := h.hub.Register(conn)
	defer h.hub.Unregister(client)

	ctx := c.Request.Context()
	h.log.Debug().Str("remote", c.ClientIP()).Msg("External grading client connected")

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			return
		}

		var reply interface{}
		switch msg.Action {
		case ws.ActionInit:
			var req service.InitRequest
			var ack *service.InitAck
			if decodeData(msg.Data, &req) {
				ack = h.bridge.Init(ctx, req, client)
			} else {
				h.log.Error().Msg("External grading socket error: init: malformed payload")
			}
			reply = ws.AckResponse{Event: ws.EventAck, Action: msg.Action, ID: msg.ID, Data: ack}
		case ws.ActionGetResults:
			var req service.ResultsRequest
			var ack *service.ResultsAck
			if decodeData(msg.Data, &req) {
				ack = h.bridge.GetResults(ctx, req)
			} else {
				h.log.Error().Msg("External grading socket error: getResults: malformed payload")
			}
			reply = ws.AckResponse{Event: ws.EventAck, Action: msg.Action, ID: msg.ID, Data: ack}
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		default:
			h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			if err := client.SendError("unknown action: " + string(msg.Action)); err != nil {
				return
			}
			continue
		}

		if err := client.Send(reply); err != nil {
			h.log.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func decodeData(raw json.RawMessage, dst interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

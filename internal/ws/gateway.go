package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/auth"
	"messaging-service/internal/messaging"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// TokenResolver authenticates a handshake credential.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (models.User, error)
}

// Gateway owns the websocket endpoint: it authenticates connections,
// translates inbound events into messaging service calls and fans the
// results out through the hub.
type Gateway struct {
	hub      *Hub
	service  messaging.Service
	resolver TokenResolver
	upgrader websocket.Upgrader
}

// NewGateway constructs a Gateway. An empty origin list allows any origin.
func NewGateway(hub *Hub, service messaging.Service, resolver TokenResolver, allowedOrigins []string) *Gateway {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Gateway{
		hub:      hub,
		service:  service,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Handle authenticates and upgrades the connection, then starts its pumps.
// Authentication happens exactly once, before the upgrade; a bad credential
// means the connection never becomes active.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := g.resolver.Resolve(ctx, auth.BearerToken(c.Request))
	if err != nil {
		observability.IncWSEvent("ws_connect", "rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(conn, user.ID)
	client.DeviceID = observability.DeviceIDFromRequest(c.Request)
	client.IP = observability.IPFromRequest(c.Request)
	client.RequestID = observability.RequestIDFromRequest(c.Request)
	client.TraceID = span.SpanContext().TraceID().String()

	g.hub.Register(client)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect", "ok")
	g.publishLifecycle(ctx, client, "ws_connect", "")

	go client.writePump()
	go g.readPump(client)
}

// readPump processes inbound events in arrival order. Store operations run
// on a background context: a disconnect mid-operation lets the operation
// finish and simply discards the result.
func (g *Gateway) readPump(client *Client) {
	ctx := context.Background()

	defer func() {
		g.hub.Unregister(client)
		client.conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect", "ok")
		g.publishLifecycle(ctx, client, "ws_disconnect", "")
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error", "read")
				g.publishLifecycle(ctx, client, "ws_error", err.Error())
			}
			return
		}

		var evt Envelope
		if err := json.Unmarshal(raw, &evt); err != nil || evt.Event == "" {
			g.sendError(client, errInvalidPayload)
			continue
		}
		g.dispatch(ctx, client, evt.Event, evt.Data)
	}
}

func (g *Gateway) dispatch(ctx context.Context, client *Client, event string, data json.RawMessage) {
	switch event {
	case models.EventJoinConversation:
		// Joining is deliberately unauthorized: room names are opaque ids
		// and every sensitive operation re-checks membership in the service.
		var p conversationPayload
		if err := decodePayload(data, &p, "conversationId"); err != nil || p.ConversationID == "" {
			observability.IncWSEvent(event, "error")
			return
		}
		g.hub.Join(client, p.ConversationID)
		observability.IncWSEvent(event, "ok")

	case models.EventLeaveConversation:
		var p conversationPayload
		if err := decodePayload(data, &p, "conversationId"); err != nil || p.ConversationID == "" {
			observability.IncWSEvent(event, "error")
			return
		}
		g.hub.Leave(client, p.ConversationID)
		observability.IncWSEvent(event, "ok")

	case models.EventCreateConversation:
		var p createConversationPayload
		if err := decodePayload(data, &p, "recipientId"); err != nil {
			g.fail(client, event, err)
			return
		}
		conv, err := g.service.StartDirect(ctx, client.UserID, p.RecipientID)
		if err != nil {
			g.fail(client, event, err)
			return
		}
		client.trySend(marshalEvent(models.EventConversationCreated, conv))
		observability.IncWSEvent(event, "ok")

	case models.EventCreateGroupConversation:
		var p createGroupPayload
		if err := decodePayload(data, &p, ""); err != nil {
			g.fail(client, event, err)
			return
		}
		conv, err := g.service.StartGroup(ctx, client.UserID, p.RecipientIDs, p.Name)
		if err != nil {
			g.fail(client, event, err)
			return
		}
		client.trySend(marshalEvent(models.EventConversationCreated, conv))
		observability.IncWSEvent(event, "ok")

	case models.EventSendMessage:
		var p sendMessagePayload
		if err := decodePayload(data, &p, ""); err != nil {
			g.fail(client, event, err)
			return
		}
		msg, err := g.service.Send(ctx, client.UserID, p.ConversationID, p.Content)
		if err != nil {
			g.fail(client, event, err)
			return
		}
		// The sender receives the persisted record too, so its UI renders
		// the authoritative row rather than an optimistic echo.
		g.hub.Broadcast(p.ConversationID, marshalEvent(models.EventNewMessage, msg))
		observability.IncWSEvent(event, "ok")

	case models.EventMarkAsRead:
		var p conversationPayload
		if err := decodePayload(data, &p, "conversationId"); err != nil {
			g.fail(client, event, err)
			return
		}
		if err := g.service.MarkRead(ctx, client.UserID, p.ConversationID); err != nil {
			g.fail(client, event, err)
			return
		}
		g.hub.BroadcastExcept(p.ConversationID, client, marshalEvent(models.EventMessagesRead, models.MessagesRead{
			ConversationID: p.ConversationID,
			UserID:         client.UserID,
		}))
		observability.IncWSEvent(event, "ok")

	case models.EventTypingStart, models.EventTypingStop:
		var p conversationPayload
		if err := decodePayload(data, &p, "conversationId"); err != nil || p.ConversationID == "" {
			observability.IncWSEvent(event, "error")
			return
		}
		g.hub.BroadcastExcept(p.ConversationID, client, marshalEvent(models.EventUserTyping, models.UserTyping{
			ConversationID: p.ConversationID,
			UserID:         client.UserID,
			IsTyping:       event == models.EventTypingStart,
		}))
		observability.IncWSEvent(event, "ok")

	default:
		observability.IncWSEvent("unknown", "error")
	}
}

// fail delivers a scoped error event to the originating connection only.
func (g *Gateway) fail(client *Client, event string, err error) {
	observability.IncWSEvent(event, "error")
	g.sendError(client, err)
}

func (g *Gateway) sendError(client *Client, err error) {
	client.trySend(marshalEvent(models.EventError, models.ErrorPayload{Message: err.Error()}))
}

func (g *Gateway) publishLifecycle(ctx context.Context, client *Client, event, reason string) {
	payload := map[string]any{
		"ws": map[string]any{
			"event":       event,
			"conn_id":     client.ID,
			"duration_ms": time.Since(client.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   client.UserID,
			"device_id": client.DeviceID,
			"ip":        client.IP,
		},
	}

	_ = observability.PublishEvent(ctx, "ws_events.messaging", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(client.RequestID, client.TraceID))
}

package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendBufferSize = 64

// Client is one authenticated websocket connection. Identity is bound at
// handshake time and never changes; room membership lives in the hub.
type Client struct {
	ID          string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// trySend queues a payload without blocking. A false return means the
// connection is too slow to keep up and should be dropped. The send channel
// is never closed; shutdown is signalled through done, so a queue attempt
// racing the hub's eviction of this connection just discards the payload.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump serializes all writes for the connection. It exits when done is
// closed or a write fails, closing the transport either way.
func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error: conn=%s err=%v", c.ID, err)
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Envelope is the wire frame for every gateway event, inbound and outbound.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func marshalEvent(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshal event data: event=%s err=%v", event, err)
		return nil
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("marshal event: event=%s err=%v", event, err)
		return nil
	}
	return payload
}

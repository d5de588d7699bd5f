package signaling

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB covers SDP payloads.
	maxMessageSize = 64 * 1024
)

// Client wraps one websocket connection. Each connection gets a unique
// id valid for its lifetime; on disconnect the client leaves every room
// it joined, which is the only leave path there is.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	router   *Router

	mu    sync.Mutex
	rooms map[string]bool
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Send queues msg for delivery. The write is non-blocking: a client
// that stopped draining its buffer loses messages rather than stalling
// the room that is broadcasting to it.
func (c *Client) Send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Marshal failed for %s: %v", c.id, err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads messages from the websocket and dispatches them. It
// runs in a per-connection goroutine and owns all reads.
func (c *Client) readPump() {
	defer func() {
		c.leaveAll()
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", c.id, err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid message from %s: %v", c.id, err)
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump writes queued messages and periodic pings. It runs in a
// per-connection goroutine and owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Event {
	case EventJoinRoom:
		c.handleJoin(msg)
	case EventRequestShare:
		c.handleRequestShare(msg)
	case EventCancelShare:
		c.registry.CancelShare(msg.Room, c.id)
	case EventStopSharing:
		c.registry.StopShare(msg.Room, c.id)
	case EventOffer, EventAnswer, EventCandidate:
		c.router.Relay(c.id, msg)
	default:
		log.Printf("Unknown event from %s: %q", c.id, msg.Event)
	}
}

func (c *Client) handleJoin(msg Message) {
	existing, sharer, err := c.registry.Join(msg.Room, c)
	if err != nil {
		c.Send(Message{Event: EventRoomError, Error: err.Error()})
		return
	}

	roomID := NormalizeRoomID(msg.Room)
	c.mu.Lock()
	c.rooms[roomID] = true
	c.mu.Unlock()

	c.Send(Message{Event: EventExistingUsers, Users: existing})
	c.Send(Message{Event: EventRoomJoined, Room: roomID})
	if sharer != "" {
		c.Send(Message{Event: EventCurrentSharer, UserID: sharer})
	}
}

func (c *Client) handleRequestShare(msg Message) {
	resp := Message{Event: EventShareResponse, Seq: msg.Seq, OK: true}
	if err := c.registry.RequestShare(msg.Room, c.id); err != nil {
		resp.OK = false
		resp.Reason = err.Error()
	}
	c.Send(resp)
}

// leaveAll runs the implicit-leave semantics for an abrupt disconnect.
func (c *Client) leaveAll() {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.rooms = make(map[string]bool)
	c.mu.Unlock()

	for _, id := range rooms {
		c.registry.Leave(id, c.id)
	}
}

package signalclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// How long to wait for a share-response before giving up.
	requestTimeout = 5 * time.Second
)

var (
	// ErrNoResponse means the server never answered a request-share.
	ErrNoResponse = errors.New("no response from server")

	// ErrShareRefused wraps the server's refusal reason.
	ErrShareRefused = errors.New("share request refused")
)

// Client is the websocket connection channel to the signaling server:
// ordered delivery, named events, a disconnect notification, and
// request/response correlation for request-share.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan signaling.Message
	outgoing  chan signaling.Message
	done      chan struct{}

	mu           sync.Mutex
	seq          uint64
	pending      map[uint64]chan signaling.Message
	onDisconnect func()
	closed       bool
}

// NewClient creates a client for the given ws:// or wss:// URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan signaling.Message, 64),
		outgoing:  make(chan signaling.Message, 64),
		done:      make(chan struct{}),
		pending:   make(map[uint64]chan signaling.Message),
	}
}

// Connect dials the server and starts the read and write pumps.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.serverURL, err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// SetDisconnectHandler registers a callback fired once when the
// connection drops for any reason other than Close.
func (c *Client) SetDisconnectHandler(f func()) {
	c.mu.Lock()
	c.onDisconnect = f
	c.mu.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)

		c.mu.Lock()
		for seq, ch := range c.pending {
			close(ch)
			delete(c.pending, seq)
		}
		f := c.onDisconnect
		closed := c.closed
		c.mu.Unlock()

		if f != nil && !closed {
			f()
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Event == signaling.EventShareResponse {
			c.mu.Lock()
			ch, ok := c.pending[msg.Seq]
			if ok {
				delete(c.pending, msg.Seq)
			}
			c.mu.Unlock()
			if ok {
				ch <- msg
				close(ch)
			}
			continue
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues msg for the server.
func (c *Client) Send(msg signaling.Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	}
}

// JoinRoom asks the server to add this connection to roomID. The
// outcome arrives on Incoming as room-joined or room-error.
func (c *Client) JoinRoom(roomID string) error {
	return c.Send(signaling.Message{Event: signaling.EventJoinRoom, Room: roomID})
}

// RequestShare claims the room's share slot and waits for the server's
// verdict. Returns nil on success, ErrShareRefused with the server's
// reason on refusal, ErrNoResponse on timeout.
func (c *Client) RequestShare(ctx context.Context, roomID string) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	ch := make(chan signaling.Message, 1)
	c.pending[seq] = ch
	c.mu.Unlock()

	err := c.Send(signaling.Message{
		Event: signaling.EventRequestShare,
		Room:  roomID,
		Seq:   seq,
	})
	if err != nil {
		c.dropPending(seq)
		return err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrNoResponse
		}
		if !resp.OK {
			return fmt.Errorf("%w: %s", ErrShareRefused, resp.Reason)
		}
		return nil
	case <-timer.C:
		c.dropPending(seq)
		return ErrNoResponse
	case <-ctx.Done():
		c.dropPending(seq)
		return ctx.Err()
	}
}

func (c *Client) dropPending(seq uint64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

// Incoming returns the stream of server events. The channel closes
// when the connection drops.
func (c *Client) Incoming() <-chan signaling.Message {
	return c.incoming
}

// Close shuts the connection down.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
}

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floww-app/chatkit/internal/stats"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

// ErrSendQueueFull is returned by Send when the outbound queue is saturated.
var ErrSendQueueFull = errors.New("transport: send queue full")

type ChannelState int

const (
	StateIdle ChannelState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State reports the current channel state.
func (c *Client) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Room reports the room the channel is bound to, if any.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roomId
}

// Connect opens the channel for roomId. It is idempotent for a room whose
// channel is already open or opening. Switching rooms closes the previous
// channel first. Connection failures do not surface here; they feed the
// bounded reconnect loop and the error subscribers.
func (c *Client) Connect(roomId string) {
	c.mu.Lock()
	if c.roomId == roomId && (c.state == StateConnecting || c.state == StateOpen) {
		c.mu.Unlock()
		return
	}

	if c.state == StateConnecting || c.state == StateOpen {
		c.closeLocked()
	}

	c.roomId = roomId
	c.state = StateConnecting
	c.attempts = 0
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(roomId, stop)
}

// Disconnect closes the channel and resets the reconnect counter. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	c.attempts = 0
	c.roomId = ""
}

// closeLocked tears down the live connection. Caller holds c.mu.
func (c *Client) closeLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}

	if c.conn != nil {
		c.state = StateClosing
		deadline := time.Now().Add(writeWait)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.conn = nil
	}

	c.send = nil
	c.state = StateClosed
}

// Send queues a message frame for the open channel. Returns ErrNotConnected
// when the channel is not OPEN; the transport never buffers sends while
// disconnected.
func (c *Client) Send(content, senderId string, fileUrls []string, replyToId string) error {
	c.mu.Lock()
	if c.state != StateOpen || c.send == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	send := c.send
	c.mu.Unlock()

	if fileUrls == nil {
		fileUrls = []string{}
	}

	frame := &OutboundFrame{
		Content:  content,
		SenderId: senderId,
		FileUrls: fileUrls,
	}
	if replyToId != "" {
		frame.ReplyToMessageId = &replyToId
	}

	select {
	case send <- frame:
	default:
		c.log.Printf("send queue full for room %q", c.Room())
		return ErrSendQueueFull
	}

	c.stats.Incr(stats.MessagesSent)
	return nil
}

// run is the per-channel connect/reconnect loop. It exits when the channel
// closes cleanly, when the reconnect bound is exhausted, or when superseded
// by a newer Connect/Disconnect (stop closed).
func (c *Client) run(roomId string, stop chan struct{}) {
	for {
		conn, err := c.dial(roomId)
		if err != nil {
			c.log.Printf("dial room %q: %v", roomId, err)
			c.notifyError(fmt.Errorf("dial room %q: %w", roomId, err))
			if !c.awaitRetry(stop) {
				return
			}
			continue
		}

		if !c.setOpen(conn, stop) {
			conn.Close()
			return
		}

		clean := c.pump(conn, roomId, stop)
		if clean {
			c.settle(stop, StateClosed)
			return
		}

		c.notifyError(fmt.Errorf("room %q: connection closed uncleanly", roomId))
		if !c.awaitRetry(stop) {
			return
		}
		c.stats.Incr(stats.Reconnects)
	}
}

func (c *Client) dial(roomId string) (*websocket.Conn, error) {
	u, err := url.Parse(c.socketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket URL: %w", err)
	}

	u.Path = path.Join(u.Path, roomId)
	q := u.Query()
	q.Set("authorization", c.token)
	q.Set("floww-socket-auth-type", string(c.authType))
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// setOpen publishes the new connection unless this loop has been superseded.
func (c *Client) setOpen(conn *websocket.Conn, stop chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != stop {
		return false
	}

	c.conn = conn
	c.send = make(chan *OutboundFrame, sendQueueSize)
	c.state = StateOpen
	return true
}

// settle transitions to the given state unless this loop has been superseded.
func (c *Client) settle(stop chan struct{}, state ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != stop {
		return
	}

	c.conn = nil
	c.send = nil
	c.state = state
}

// awaitRetry accounts one unclean close against the reconnect bound and, if
// attempts remain, waits out the backoff. Returns false when the loop must
// stop. The counter is reset only by an explicit Connect or Disconnect.
func (c *Client) awaitRetry(stop chan struct{}) bool {
	c.mu.Lock()
	if c.stop != stop {
		c.mu.Unlock()
		return false
	}

	c.attempts++
	if c.attempts > c.maxAttempts {
		c.conn = nil
		c.send = nil
		c.state = StateClosed
		c.mu.Unlock()
		c.log.Printf("room %q: reconnect attempts exhausted", c.Room())
		c.notifyError(fmt.Errorf("room %q: reconnect attempts exhausted", c.Room()))
		return false
	}

	c.conn = nil
	c.send = nil
	c.state = StateConnecting
	backoff := c.backoff
	c.mu.Unlock()

	select {
	case <-stop:
		return false
	case <-time.After(backoff):
		return true
	}
}

// pump runs the read and write loops for one connection and reports whether
// the connection ended cleanly.
func (c *Client) pump(conn *websocket.Conn, roomId string, stop chan struct{}) bool {
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	done := make(chan struct{})
	go c.writeLoop(conn, send, stop, done)

	clean := c.readLoop(conn, roomId, stop)

	close(done)
	conn.Close()
	return clean
}

func (c *Client) writeLoop(conn *websocket.Conn, send chan *OutboundFrame, stop, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-send:
			bytes, err := json.Marshal(frame)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
				c.log.Println("write frame:", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		case <-done:
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, roomId string, stop chan struct{}) bool {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				// closed by Disconnect or a newer Connect
				return true
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true
			}

			c.log.Printf("ws: read: %v", err)
			return false
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing frame:", err)
			c.stats.Incr(stats.FramesDropped)
			continue
		}

		c.stats.Incr(stats.FramesReceived)
		c.fanOut(Event{RoomId: roomId, Message: msg})
	}
}

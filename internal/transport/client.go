package transport

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/floww-app/chatkit/internal/stats"
)

type AuthType string

const (
	AuthEmployee AuthType = "employee"
	AuthAdmin    AuthType = "admin"
)

const (
	employeeBasePath = "/api/wall/chat"
	adminBasePath    = "/api/wall/chat/admin"

	defaultBackoff     = 3 * time.Second
	defaultMaxAttempts = 5
)

// Params configures a Client. The client is an explicitly constructed,
// injectable instance owned by the application root; there is no shared
// package-level connection.
type Params struct {
	ApiURL     string
	SocketURL  string
	AuthType   AuthType
	Token      string
	AdminToken string

	// Backoff and MaxReconnectAttempts default to 3s and 5 when zero.
	Backoff              time.Duration
	MaxReconnectAttempts int

	HTTPClient *http.Client
}

// Client wraps one WebSocket connection per active room plus the REST
// endpoints of the chat backend. It owns connect/reconnect policy and fans
// inbound frames out to message subscribers.
type Client struct {
	id         uuid.UUID
	apiURL     string
	socketURL  string
	authType   AuthType
	token      string
	adminToken string

	httpc  *http.Client
	dialer *websocket.Dialer
	log    *log.Logger
	stats  stats.Provider

	backoff     time.Duration
	maxAttempts int

	mu       sync.Mutex
	state    ChannelState
	roomId   string
	conn     *websocket.Conn
	send     chan *OutboundFrame
	stop     chan struct{}
	attempts int

	subMu   sync.RWMutex
	msgSubs map[string]chan Event
	errSubs map[string]chan error
}

func NewClient(p Params, logger *log.Logger, sp stats.Provider) (*Client, error) {
	if p.ApiURL == "" {
		return nil, fmt.Errorf("api URL cannot be empty")
	}
	if p.SocketURL == "" {
		return nil, fmt.Errorf("socket URL cannot be empty")
	}
	if p.Token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	if p.AuthType != AuthEmployee && p.AuthType != AuthAdmin {
		return nil, fmt.Errorf("invalid auth type %q", p.AuthType)
	}
	if p.AuthType == AuthAdmin && p.AdminToken == "" {
		return nil, fmt.Errorf("admin token cannot be empty for admin auth")
	}

	httpc := p.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}

	backoff := p.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	maxAttempts := p.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Client{
		id:          uuid.New(),
		apiURL:      p.ApiURL,
		socketURL:   p.SocketURL,
		authType:    p.AuthType,
		token:       p.Token,
		adminToken:  p.AdminToken,
		httpc:       httpc,
		dialer:      websocket.DefaultDialer,
		log:         logger,
		stats:       sp,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		state:       StateIdle,
		msgSubs:     make(map[string]chan Event),
		errSubs:     make(map[string]chan error),
	}, nil
}

// Id identifies this client instance in logs and diagnostics.
func (c *Client) Id() string {
	return c.id.String()
}

// SubscribeMessages registers a subscriber for inbound frames. The returned
// function removes the subscription. Slow subscribers have frames dropped
// rather than blocking the read loop.
func (c *Client) SubscribeMessages() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	key := uuid.NewString()

	c.subMu.Lock()
	c.msgSubs[key] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.msgSubs, key)
		c.subMu.Unlock()
	}
}

// SubscribeErrors registers a subscriber for transport errors. Callers that
// need the reason a connect failed must subscribe before calling Connect.
func (c *Client) SubscribeErrors() (<-chan error, func()) {
	ch := make(chan error, 16)
	key := uuid.NewString()

	c.subMu.Lock()
	c.errSubs[key] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.errSubs, key)
		c.subMu.Unlock()
	}
}

func (c *Client) fanOut(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.msgSubs {
		select {
		case ch <- ev:
		default:
			c.log.Printf("dropping frame for slow subscriber in room %q", ev.RoomId)
			c.stats.Incr(stats.FramesDropped)
		}
	}
}

func (c *Client) notifyError(err error) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.errSubs {
		select {
		case ch <- err:
		default:
		}
	}
}

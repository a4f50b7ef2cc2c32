// Package stream subscribes to live trade and funding events over the API
// websocket.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/statsapi"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event names a stream topic.
type Event string

const (
	EventTrade   Event = "TRADE"
	EventFunding Event = "FUNDING"
)

// ParseEvent accepts event names case-insensitively.
func ParseEvent(raw string) (Event, error) {
	switch Event(strings.ToUpper(strings.TrimSpace(raw))) {
	case EventTrade:
		return EventTrade, nil
	case EventFunding:
		return EventFunding, nil
	}
	return "", &exchange.InvalidArgumentError{Field: "event", Reason: fmt.Sprintf("unknown event %q", raw)}
}

const (
	defaultPingInterval     = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 5 * time.Second
	messageBuffer           = 64
)

// Message is one pushed event. Exactly one of Trade and Funding is set,
// matching Event.
type Message struct {
	Event   Event
	Amm     exchange.Amm
	Trade   *statsapi.MarketTrade
	Funding *statsapi.FundingPaymentEvent
	Raw     []byte
}

type subscribeRequest struct {
	Op    string `json:"op"`
	Event Event  `json:"event"`
	Amm   string `json:"amm,omitempty"`
}

type frame struct {
	Event Event               `json:"event"`
	Amm   string              `json:"amm"`
	Data  jsoniter.RawMessage `json:"data"`
}

// Client dials the websocket endpoint of an instance.
type Client struct {
	url          string
	dialer       *websocket.Dialer
	header       http.Header
	pingInterval time.Duration
}

// Option customises the client.
type Option func(*Client)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithHeader adds a handshake header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithPingInterval sets the keepalive period. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.pingInterval = d
		}
	}
}

// NewClient builds a client for the ws:// or wss:// url.
func NewClient(url string, opts ...Option) (*Client, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return nil, fmt.Errorf("stream: url must use ws:// or wss://, got %q", url)
	}
	c := &Client{
		url:          url,
		dialer:       &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: defaultHandshakeTimeout},
		header:       http.Header{},
		pingInterval: defaultPingInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscription delivers messages until Close, context cancellation or a
// connection failure. Messages is closed when the subscription ends.
type Subscription struct {
	conn     *websocket.Conn
	messages chan Message
	done     chan struct{}
	quit     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	err       error
}

// Subscribe opens a connection and subscribes to event, optionally narrowed
// to one amm.
func (c *Client) Subscribe(ctx context.Context, event Event, amm exchange.Amm) (*Subscription, error) {
	if event != EventTrade && event != EventFunding {
		return nil, &exchange.InvalidArgumentError{Field: "event", Reason: fmt.Sprintf("unknown event %q", event)}
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			logx.WithContext(ctx).Errorf("stream: connect failed url=%s status=%s err=%v", c.url, resp.Status, err)
		}
		return nil, fmt.Errorf("stream: dial %s: %w", c.url, err)
	}
	req := subscribeRequest{Op: "subscribe", Event: event, Amm: amm.Canonical().String()}
	payload, err := json.Marshal(req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("stream: encode subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("stream: send subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	logx.WithContext(ctx).Infof("stream: subscribed url=%s event=%s amm=%s", c.url, event, req.Amm)

	sub := &Subscription{
		conn:     conn,
		messages: make(chan Message, messageBuffer),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	go sub.readLoop(ctx, event, amm.Canonical())
	go sub.watch(ctx, c.pingInterval)
	return sub, nil
}

// Messages returns the delivery channel.
func (s *Subscription) Messages() <-chan Message { return s.messages }

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the reason the subscription ended, nil after Close or
// cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quit)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

func (s *Subscription) watch(ctx context.Context, pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case <-tick:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logx.WithContext(ctx).Errorf("stream: ping failed err=%v", err)
				_ = s.Close()
				return
			}
		}
	}
}

func (s *Subscription) readLoop(ctx context.Context, event Event, amm exchange.Amm) {
	defer close(s.done)
	defer close(s.messages)
	defer s.Close()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !isNormalClose(err) && !errors.Is(err, net.ErrClosed) {
				s.fail(fmt.Errorf("stream: read: %w", err))
				logx.WithContext(ctx).Errorf("stream: connection lost event=%s err=%v", event, err)
			}
			return
		}
		msg, ok, err := decode(raw)
		if err != nil {
			logx.WithContext(ctx).Errorf("stream: skip malformed frame err=%v", err)
			continue
		}
		if !ok || msg.Event != event || (amm != "" && msg.Amm.Canonical() != amm) {
			continue
		}
		select {
		case s.messages <- msg:
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func decode(raw []byte) (Message, bool, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Message{}, false, err
	}
	msg := Message{Event: f.Event, Amm: exchange.Amm(f.Amm), Raw: raw}
	switch f.Event {
	case EventTrade:
		var t statsapi.MarketTrade
		if err := json.Unmarshal(f.Data, &t); err != nil {
			return Message{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		msg.Trade = &t
	case EventFunding:
		var fe statsapi.FundingPaymentEvent
		if err := json.Unmarshal(f.Data, &fe); err != nil {
			return Message{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		msg.Funding = &fe
	default:
		return Message{}, false, nil
	}
	return msg, true, nil
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

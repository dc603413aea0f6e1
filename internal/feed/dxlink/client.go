package dxlink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/pkg/config"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Session constants.
const (
	venueName   = "dxlink"
	feedChannel = 1

	protocolVersion = "0.1-strikescan/1.0.0"

	handshakeTimeout = 10 * time.Second
	stepTimeout      = 10 * time.Second

	// HealthWindow bounds the silence we tolerate before reporting the
	// session unhealthy. Health is exposed for monitoring only; it does
	// not force a reconnect.
	HealthWindow = 30 * time.Second

	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10

	eventBufferSize = 1024
)

// State is the session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateSubscribed:
		return "SUBSCRIBED"
	default:
		return "DISCONNECTED"
	}
}

// Client owns one streaming session to a dxLink-style venue: it
// authenticates, opens the feed channel, maintains subscriptions and
// keepalives, and upserts every inbound quote/trade into the live cache.
type Client struct {
	cfg    config.DXLinkConfig
	logger *logger.Logger
	cache  *quotecache.Cache

	conn   *websocket.Conn
	connMu sync.Mutex
	state  atomic.Int32

	subscriptions map[string]bool
	subMu         sync.RWMutex

	// Handshake signals, recreated per connection attempt.
	authStateCh chan string
	channelCh   chan int

	lastMessage atomic.Int64 // unix nanos

	// OnSummary receives daily aggregate events; optional.
	OnSummary func(*SummaryEvent)

	// Inbound events flow through a bounded channel so a slow consumer
	// applies backpressure instead of unbounded callback fan-out.
	events chan Event

	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// NewClient creates a feed client writing into the given quote cache.
func NewClient(cfg config.DXLinkConfig, cache *quotecache.Cache, log *logger.Logger) *Client {
	return &Client{
		cfg:           cfg,
		logger:        log.WithField("venue", venueName),
		cache:         cache,
		subscriptions: make(map[string]bool),
		events:        make(chan Event, eventBufferSize),
		stopCh:        make(chan struct{}),
	}
}

// State returns the current session state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Healthy reports whether the session is authenticated and has received a
// frame within the health window.
func (c *Client) Healthy() bool {
	if c.State() < StateAuthenticated {
		return false
	}
	last := time.Unix(0, c.lastMessage.Load())
	return time.Since(last) < HealthWindow
}

// Connect establishes the session: token, websocket, SETUP, AUTH, feed
// channel, FEED_SETUP. Each step is bounded by its own timeout.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.keepaliveLoop()
	go c.dispatchLoop()

	c.logger.Info("Feed session established")
	return nil
}

// connect performs one connection + handshake attempt and starts the read
// loop for that connection.
func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	token, err := c.fetchToken(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return &contracts.AuthError{Venue: venueName, Reason: fmt.Sprintf("token fetch: %v", err)}
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return &contracts.ConnectionError{Venue: venueName, Err: err}
	}

	c.connMu.Lock()
	c.conn = conn
	c.authStateCh = make(chan string, 4)
	c.channelCh = make(chan int, 4)
	c.connMu.Unlock()

	c.setState(StateConnected)
	c.touch()

	c.wg.Add(1)
	go c.readLoop(conn)

	if err := c.handshake(token); err != nil {
		c.closeConn()
		return err
	}

	return nil
}

// handshake runs SETUP → AUTH → CHANNEL_REQUEST → FEED_SETUP on an already
// open socket. The read loop feeds the signal channels.
func (c *Client) handshake(token string) error {
	keepaliveSecs := int(c.cfg.KeepaliveTimeout.Seconds())
	if err := c.writeJSON(setupFrame{
		Type:                   frameSetup,
		Channel:                0,
		Version:                protocolVersion,
		KeepaliveTimeout:       keepaliveSecs,
		AcceptKeepaliveTimeout: keepaliveSecs,
	}); err != nil {
		return &contracts.ConnectionError{Venue: venueName, Err: err}
	}

	c.setState(StateAuthenticating)
	if err := c.writeJSON(authFrame{Type: frameAuth, Channel: 0, Token: token}); err != nil {
		return &contracts.ConnectionError{Venue: venueName, Err: err}
	}

	if err := c.awaitAuthState("AUTHORIZED"); err != nil {
		return err
	}
	c.setState(StateAuthenticated)

	if err := c.writeJSON(channelRequestFrame{
		Type:       frameChannelRequest,
		Channel:    feedChannel,
		Service:    "FEED",
		Parameters: map[string]string{"contract": "AUTO"},
	}); err != nil {
		return &contracts.ConnectionError{Venue: venueName, Err: err}
	}

	if err := c.awaitChannelOpened(feedChannel); err != nil {
		return err
	}

	if err := c.writeJSON(feedSetupFrame{
		Type:                    frameFeedSetup,
		Channel:                 feedChannel,
		AcceptAggregationPeriod: c.cfg.AggregationPeriod.Seconds(),
		AcceptDataFormat:        "COMPACT",
		AcceptEventFields:       acceptEventFields,
	}); err != nil {
		return &contracts.ConnectionError{Venue: venueName, Err: err}
	}

	return nil
}

func (c *Client) awaitAuthState(want string) error {
	for {
		select {
		case state := <-c.authStateCh:
			if state == want {
				return nil
			}
			if state == "UNAUTHORIZED" && c.State() == StateAuthenticating {
				// Initial state echo before AUTH is processed.
				continue
			}
			return &contracts.AuthError{Venue: venueName, Reason: fmt.Sprintf("auth state %s", state)}
		case <-time.After(stepTimeout):
			return &contracts.ConnectionError{Venue: venueName, Err: fmt.Errorf("timeout waiting for auth state %s", want)}
		case <-c.stopCh:
			return &contracts.ConnectionError{Venue: venueName, Err: fmt.Errorf("client stopped")}
		}
	}
}

func (c *Client) awaitChannelOpened(channel int) error {
	for {
		select {
		case ch := <-c.channelCh:
			if ch == channel {
				return nil
			}
		case <-time.After(stepTimeout):
			return &contracts.ConnectionError{Venue: venueName, Err: fmt.Errorf("timeout waiting for channel %d", channel)}
		case <-c.stopCh:
			return &contracts.ConnectionError{Venue: venueName, Err: fmt.Errorf("client stopped")}
		}
	}
}

// fetchToken obtains a short-lived session token from the venue's token
// endpoint. When no endpoint is configured the static secret is the token.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	if c.cfg.TokenURL == "" {
		return c.cfg.ClientSecret, nil
	}

	body := fmt.Sprintf(`{"grant_type":"client_credentials","client_id":%q,"client_secret":%q}`,
		c.cfg.ClientID, c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: handshakeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	return result.Token, nil
}

// Subscribe adds (event-type, symbol) subscriptions for the given symbols.
// Already-subscribed symbols are not re-sent.
func (c *Client) Subscribe(symbols ...string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	var add []subscriptionEntry
	for _, symbol := range symbols {
		if c.subscriptions[symbol] {
			continue
		}
		c.subscriptions[symbol] = true
		add = append(add,
			subscriptionEntry{Type: EventQuote, Symbol: symbol},
			subscriptionEntry{Type: EventTrade, Symbol: symbol},
			subscriptionEntry{Type: EventSummary, Symbol: symbol},
		)
	}

	if len(add) == 0 {
		return nil
	}
	if c.State() < StateAuthenticated {
		// Desired set is recorded; the subscription flows on (re)connect.
		return nil
	}

	if err := c.writeJSON(feedSubscriptionFrame{Type: frameFeedSubscription, Channel: feedChannel, Add: add}); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}
	c.setState(StateSubscribed)

	c.logger.WithField("count", len(add)/3).Debug("Added feed subscriptions")
	return nil
}

// Unsubscribe removes symbol subscriptions.
func (c *Client) Unsubscribe(symbols ...string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	var remove []subscriptionEntry
	for _, symbol := range symbols {
		if !c.subscriptions[symbol] {
			continue
		}
		delete(c.subscriptions, symbol)
		remove = append(remove,
			subscriptionEntry{Type: EventQuote, Symbol: symbol},
			subscriptionEntry{Type: EventTrade, Symbol: symbol},
			subscriptionEntry{Type: EventSummary, Symbol: symbol},
		)
	}

	if len(remove) == 0 || c.State() < StateAuthenticated {
		return nil
	}

	return c.writeJSON(feedSubscriptionFrame{Type: frameFeedSubscription, Channel: feedChannel, Remove: remove})
}

// IsSubscribed reports whether a symbol is in the desired subscription set.
func (c *Client) IsSubscribed(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[symbol]
}

// Subscriptions returns the desired subscription set.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	symbols := make([]string, 0, len(c.subscriptions))
	for symbol := range c.subscriptions {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Close shuts the session down and waits for the loops to exit.
func (c *Client) Close() error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stopCh)
	c.closeConn()
	c.wg.Wait()
	close(c.events)
	c.logger.Info("Feed session closed")
	return nil
}

// readLoop reads frames from one connection until it dies, then hands off
// to the reconnect path.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.stopped.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.logger.WithError(err).Warn("Feed read failed, reconnecting")
			c.handleDisconnect()
			return
		}

		c.touch()
		c.handleFrame(message)
	}
}

// handleFrame decodes one wire frame and routes it.
func (c *Client) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.WithError(err).Warn("Dropping undecodable frame")
		return
	}

	switch f.Type {
	case frameKeepalive:
		// Answer on the control channel within the session timeout or the
		// upstream drops the connection.
		if err := c.writeJSON(keepaliveFrame{Type: frameKeepalive, Channel: 0}); err != nil {
			c.logger.WithError(err).Warn("Keepalive reply failed")
		}

	case frameAuthState:
		var asf authStateFrame
		if err := json.Unmarshal(data, &asf); err != nil {
			return
		}
		select {
		case c.authStateCh <- asf.State:
		default:
		}

	case frameChannelOpened:
		select {
		case c.channelCh <- f.Channel:
		default:
		}

	case frameFeedConfig:
		c.logger.Debug("Feed configuration acknowledged")

	case frameFeedData:
		var fd feedDataFrame
		if err := json.Unmarshal(data, &fd); err != nil {
			c.logger.WithError(err).Warn("Dropping undecodable feed data")
			return
		}
		events, err := decodeFeedData(&fd)
		if err != nil {
			c.logger.WithError(err).Warn("Dropping malformed feed data")
			return
		}
		for _, ev := range events {
			select {
			case c.events <- ev:
			case <-c.stopCh:
				return
			}
		}

	case frameError:
		var ef errorFrame
		if err := json.Unmarshal(data, &ef); err != nil {
			return
		}
		c.logger.WithFields(map[string]interface{}{
			"code":    ef.Error,
			"message": ef.Message,
		}).Error("Feed error frame")
	}
}

// dispatchLoop drains the event channel into the quote cache. Bid/ask and
// last-trade are applied as independent partial updates.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.applyEvent(ev)
		}
	}
}

func (c *Client) applyEvent(ev Event) {
	switch ev.Kind {
	case EventQuote:
		q := ev.Quote
		c.cache.Apply(q.Symbol, quotecache.Update{
			Bid:       &q.Bid,
			Ask:       &q.Ask,
			Timestamp: time.Now(),
			Source:    contracts.ProvenanceLive,
		})

	case EventTrade:
		t := ev.Trade
		ts := t.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		c.cache.Apply(t.Symbol, quotecache.Update{
			Last:      &t.Price,
			Volume:    &t.DayVolume,
			Timestamp: ts,
			Source:    contracts.ProvenanceLive,
		})

	case EventSummary:
		if c.OnSummary != nil {
			c.OnSummary(ev.Summary)
		}
	}
}

// keepaliveLoop sends our own keepalives at half the negotiated timeout and
// keeps the health gauge current.
func (c *Client) keepaliveLoop() {
	defer c.wg.Done()

	interval := c.cfg.KeepaliveTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			metrics.FeedHealthy.WithLabelValues(venueName).Set(0)
			return
		case <-ticker.C:
			if c.State() >= StateConnected {
				if err := c.writeJSON(keepaliveFrame{Type: frameKeepalive, Channel: 0}); err != nil {
					c.logger.WithError(err).Warn("Keepalive send failed")
				}
			}
			if c.Healthy() {
				metrics.FeedHealthy.WithLabelValues(venueName).Set(1)
			} else {
				metrics.FeedHealthy.WithLabelValues(venueName).Set(0)
			}
		}
	}
}

// handleDisconnect tears down the dead connection and starts the bounded
// reconnect loop.
func (c *Client) handleDisconnect() {
	c.closeConn()

	if c.stopped.Load() {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconnect()
	}()
}

// reconnect retries with a fixed delay up to the attempt bound, then gives
// up and logs; the operator restarts or the next scan runs degraded on the
// REST/historical tiers.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-c.stopCh:
			return
		case <-time.After(reconnectDelay):
		}

		metrics.FeedReconnects.WithLabelValues(venueName).Inc()
		c.logger.WithField("attempt", attempt).Info("Attempting feed reconnection")

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout+stepTimeout)
		err := c.connect(ctx)
		cancel()
		if err != nil {
			c.logger.WithError(err).Warn("Feed reconnection failed")
			continue
		}

		c.resubscribe()
		c.logger.Info("Feed reconnected")
		return
	}

	c.logger.Error("Feed reconnection attempts exhausted")
}

// resubscribe restores the full desired subscription set after a reconnect.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	var add []subscriptionEntry
	for symbol := range c.subscriptions {
		add = append(add,
			subscriptionEntry{Type: EventQuote, Symbol: symbol},
			subscriptionEntry{Type: EventTrade, Symbol: symbol},
			subscriptionEntry{Type: EventSummary, Symbol: symbol},
		)
	}
	c.subMu.RUnlock()

	if len(add) == 0 {
		return
	}

	if err := c.writeJSON(feedSubscriptionFrame{Type: frameFeedSubscription, Channel: feedChannel, Add: add}); err != nil {
		c.logger.WithError(err).Error("Resubscription failed")
		return
	}
	c.setState(StateSubscribed)
	c.logger.WithField("count", len(add)/3).Info("Restored feed subscriptions")
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
	c.setState(StateDisconnected)
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) touch() {
	c.lastMessage.Store(time.Now().UnixNano())
}

// Package feed ingests the upstream market-data stream. The quote feed
// delivers ETH/USD and DAI/USD spot prices plus accrued interest per
// position; this package keeps the connection alive and hands parsed quotes
// to the ingestor.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/timecache"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// QuoteHandler is called for each parsed quote event.
type QuoteHandler func(domain.PositionQuote)

// quoteMessage is the wire shape of one quote event. Decimal fields arrive as
// strings; any of them may be absent while the upstream feed is warming up.
type quoteMessage struct {
	Event      string  `json:"event"`
	PositionID string  `json:"position_id"`
	BaseUSD    *string `json:"base_usd"`
	QuoteUSD   *string `json:"quote_usd"`
	Interest   *string `json:"interest"`
	Timestamp  string  `json:"ts"`
}

// wsCommand is a subscribe or unsubscribe request.
type wsCommand struct {
	Type      string   `json:"type"`
	Channel   string   `json:"channel"`
	Positions []string `json:"positions"`
}

// WSClient is a WebSocket client for the quote feed. It manages the
// connection lifecycle, restores subscriptions after a reconnect, and
// dispatches parsed quotes to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn
	times *timecache.Cache

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []wsCommand

	handlerMu sync.RWMutex
	handlers  []QuoteHandler

	done chan struct{}
}

// NewWSClient creates a client for the given quote feed endpoint.
func NewWSClient(wsURL string, times *timecache.Cache) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		times: times,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously requested subscriptions are replayed.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("feed: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	w.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	for _, cmd := range w.subscriptions {
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("feed: restore subscription: %w", err)
		}
	}
	return nil
}

// Subscribe requests quote events for the given position ids.
func (w *WSClient) Subscribe(ctx context.Context, positionIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("feed: not connected")
	}

	cmd := wsCommand{
		Type:      "subscribe",
		Channel:   "quotes",
		Positions: positionIDs,
	}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	w.subscriptions = append(w.subscriptions, cmd)
	return nil
}

// OnQuote registers a handler called for every parsed quote event.
func (w *WSClient) OnQuote(handler QuoteHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// sendCommand sends a JSON command. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd wsCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages from conn and dispatches them until the connection
// drops, then hands off to reconnect. It owns exactly the connection it was
// started with; reconnect spawns a fresh loop for the replacement, so the
// deferred close must never touch w.conn.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.reconnect()
			return
		}
		w.handleMessage(message)
	}
}

// pingLoop sends periodic pings on conn until writes fail or the client is
// closed. Each connection gets its own loop.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw message and dispatches quote events. Messages
// that fail to parse are dropped; a missing decimal field stays nil so the
// incomplete state reaches consumers unchanged.
func (w *WSClient) handleMessage(raw []byte) {
	var msg quoteMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Event != "quote" || msg.PositionID == "" {
		return
	}

	pq := domain.PositionQuote{PositionID: msg.PositionID}
	pq.Timestamp = time.Now().UTC()
	if msg.Timestamp != "" {
		if ts, err := w.times.Parse(msg.Timestamp); err == nil {
			pq.Timestamp = ts
		}
	}

	var ok bool
	if pq.BaseUSD, ok = parseDecimalField(msg.BaseUSD); !ok {
		return
	}
	if pq.QuoteUSD, ok = parseDecimalField(msg.QuoteUSD); !ok {
		return
	}
	if pq.InterestPercent, ok = parseDecimalField(msg.Interest); !ok {
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(pq)
	}
}

// parseDecimalField parses an optional string decimal. A nil input is a valid
// absent field; a present but malformed value poisons the whole event.
func parseDecimalField(s *string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, false
	}
	return &d, true
}

// reconnect re-establishes the connection with exponential backoff. It blocks
// until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

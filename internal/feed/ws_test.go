package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/timecache"
)

// feedServer is a fake upstream that drops the first connection immediately
// and serves quotes on every connection after that.
type feedServer struct {
	*httptest.Server

	mu       sync.Mutex
	accepted int
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()

	fs := &feedServer{}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		fs.mu.Lock()
		fs.accepted++
		n := fs.accepted
		fs.mu.Unlock()

		if n == 1 {
			conn.Close()
			return
		}

		msg := `{"event":"quote","position_id":"pos-1","base_usd":"250.5","quote_usd":"1.0"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	return fs
}

func (fs *feedServer) connections() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.accepted
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func newTestClient(t *testing.T, wsURL string) *WSClient {
	t.Helper()
	times, err := timecache.New(timecache.DefaultCapacity)
	require.NoError(t, err)
	return NewWSClient(wsURL, times)
}

// A dropped connection must be replaced exactly once, and the replacement
// must stay up: the old read loop owns only the connection it started with,
// so its cleanup cannot tear down the reconnected one.
func TestReconnectKeepsReplacementConnection(t *testing.T) {
	srv := newFeedServer(t)
	defer srv.Close()

	client := newTestClient(t, srv.wsURL())
	defer client.Close()

	quotes := make(chan domain.PositionQuote, 16)
	client.OnQuote(func(q domain.PositionQuote) {
		quotes <- q
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	select {
	case q := <-quotes:
		assert.Equal(t, "pos-1", q.PositionID)
		require.NotNil(t, q.BaseUSD)
		assert.Equal(t, "250.5", q.BaseUSD.String())
	case <-time.After(15 * time.Second):
		t.Fatal("no quote received after reconnect")
	}

	// Hold past another backoff cycle: a client that keeps killing its own
	// replacement would show up here as a third dial.
	time.Sleep(reconnectDelay + time.Second)
	assert.Equal(t, 2, srv.connections())
}

func TestHandleMessageDecimalFields(t *testing.T) {
	client := newTestClient(t, "ws://unused")

	var got []domain.PositionQuote
	client.OnQuote(func(q domain.PositionQuote) {
		got = append(got, q)
	})

	// Absent interest stays nil; the quote still flows through.
	client.handleMessage([]byte(`{"event":"quote","position_id":"pos-1","base_usd":"250.5","quote_usd":"1.0"}`))
	require.Len(t, got, 1)
	assert.Nil(t, got[0].InterestPercent)
	require.NotNil(t, got[0].QuoteUSD)
	assert.Equal(t, "1", got[0].QuoteUSD.String())

	// A malformed decimal drops the whole event.
	client.handleMessage([]byte(`{"event":"quote","position_id":"pos-1","base_usd":"not-a-number"}`))
	assert.Len(t, got, 1)

	// Non-quote events and missing position ids are ignored.
	client.handleMessage([]byte(`{"event":"heartbeat"}`))
	client.handleMessage([]byte(`{"event":"quote","base_usd":"250.5"}`))
	assert.Len(t, got, 1)
}

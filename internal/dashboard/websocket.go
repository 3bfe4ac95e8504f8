package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hookguard/hookguard/internal/ledger"
)

// feedHub manages the set of active WebSocket connections and broadcasts
// trace records to all of them. This is the backend for the dashboard's
// live activity feed.
//
// A single hub goroutine owns registration, unregistration, and
// broadcasting. Routing every mutation through that goroutine means the
// connection set never needs a lock — channels serialize access instead.
type feedHub struct {
	clients map[*feedClient]bool

	broadcastCh  chan []byte
	registerCh   chan *feedClient
	unregisterCh chan *feedClient
}

// feedClient wraps a single WebSocket connection subscribed to the feed.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	mu   sync.Mutex
}

// upgrader handles HTTP → WebSocket protocol upgrade. CheckOrigin allows
// all origins — the dashboard binds to loopback by default, and same-host
// dev tooling needs cross-origin upgrades to work.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Keepalive tuning for a feed connection. A dashboard tab can sit open
// for hours with no server-initiated traffic beyond trace events, so
// without a ping the client side has no way to distinguish "quiet
// workspace" from "dead connection" until it tries to send something.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFeedMessage = 1 << 16
	// replayBacklog bounds how many recent trace records a newly
	// connected client is replayed before joining the live broadcast, so
	// opening the dashboard after a quiet workspace doesn't show a blank
	// feed until the next mutation happens.
	replayBacklog = 50
)

func newFeedHub() *feedHub {
	return &feedHub{
		clients:      make(map[*feedClient]bool),
		broadcastCh:  make(chan []byte, 256),
		registerCh:   make(chan *feedClient),
		unregisterCh: make(chan *feedClient),
	}
}

// run is the hub's event loop. Runs in a background goroutine for the
// lifetime of the Dashboard.
func (h *feedHub) run() {
	for {
		select {
		case c := <-h.registerCh:
			h.clients[c] = true
			slog.Debug("dashboard feed client connected", "total", len(h.clients))

		case c := <-h.unregisterCh:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				slog.Debug("dashboard feed client disconnected", "total", len(h.clients))
			}

		case msg := <-h.broadcastCh:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client's send buffer is full — drop it rather than
					// let one slow client stall the feed for everyone.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// broadcast pushes msg to every connected client. Non-blocking — a full
// broadcast channel drops the message, since the feed is best-effort.
func (h *feedHub) broadcast(msg []byte) {
	select {
	case h.broadcastCh <- msg:
	default:
	}
}

// handleWebSocket upgrades the connection, registers it with the hub,
// and replays recent ledger history so the client has context before the
// next live event arrives.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("dashboard websocket upgrade failed", "error", err)
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	d.feedHub.registerCh <- client
	d.replayRecent(client)

	go client.writePump()
	go client.readPump(d.feedHub)
}

// replayRecent sends client the tail of the trace ledger, oldest first,
// so a freshly opened dashboard isn't blank until the next mutation.
// Best-effort: replay failures are logged, never fatal to the connection.
func (d *Dashboard) replayRecent(client *feedClient) {
	if d.trace == nil {
		return
	}
	records, err := d.trace.Query(ledger.QueryParams{Limit: replayBacklog})
	if err != nil {
		slog.Warn("dashboard feed replay failed", "error", err)
		return
	}
	// The indexed query returns newest first; replay in sequence order.
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	for _, rec := range records {
		rec := rec
		data, err := json.Marshal(feedEvent{Kind: "trace", Record: &rec})
		if err != nil {
			continue
		}
		select {
		case client.send <- data:
		default:
			return
		}
	}
}

// writePump drains the client's send channel to its socket and keeps the
// connection alive with periodic pings. One per connection.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.mu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
			if err != nil {
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readPump mostly exists to notice when the client goes away — the feed
// is server-to-client only, so any data frame is discarded. Pong frames
// (gorilla/websocket's reply to our PingMessage) refresh the read
// deadline so a silent-but-alive client isn't mistaken for dead.
func (c *feedClient) readPump(hub *feedHub) {
	defer func() {
		hub.unregisterCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFeedMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

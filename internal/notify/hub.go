package notify

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageChanged is sent to every subscriber after a successful mutation.
const MessageChanged = "changed"

const writeWait = 5 * time.Second

// Hub fans change notifications out to websocket subscribers.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]chan string
}

// NewHub builds a hub accepting upgrades from the given origins. "*" accepts any
// origin; requests without an Origin header (non-browser clients) are always accepted.
func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		logger: logger,
		subs:   make(map[*websocket.Conn]chan string),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	out := make(chan string, 1)
	h.mu.Lock()
	h.subs[conn] = out
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		// incoming frames are ignored, reading only detects the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.subs, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug("subscriber disconnected", zap.String("remote", r.RemoteAddr))
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				h.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// Broadcast queues msg for every subscriber. A subscriber that still has an
// undelivered message keeps that one; notifications carry no payload so
// coalescing them loses nothing.
func (h *Hub) Broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, out := range h.subs {
		select {
		case out <- msg:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, out := range h.subs {
		close(out)
		delete(h.subs, conn)
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// EventsURL turns an API base URL (http://host:port) into the change feed URL.
func EventsURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("todos", "events").String(), nil
}

// Watch dials the change feed and calls onChange for every notification until
// ctx is done (returns nil) or the connection fails (returns the error).
func Watch(ctx context.Context, eventsURL string, onChange func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, eventsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		mt, p, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if mt == websocket.TextMessage && string(p) == MessageChanged {
			onChange()
		}
	}
}

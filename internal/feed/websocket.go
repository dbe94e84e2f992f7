package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSource reads snapshots from the daemon's WebSocket endpoint. Each text or
// binary message is one snapshot.
type WebSocketSource struct {
	URL         string
	Header      http.Header
	Dialer      *websocket.Dialer
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// NewWebSocketSource creates a source for url.
func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{URL: url, DialTimeout: 5 * time.Second}
}

// Run dials the endpoint and forwards messages until ctx is cancelled or the
// connection drops.
func (s *WebSocketSource) Run(ctx context.Context, out chan<- []byte) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: s.DialTimeout}
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.URL, err)
	}
	defer conn.Close()
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("live feed connected", "url", s.URL)

	// ReadMessage does not watch ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return nil
		}
	}
}

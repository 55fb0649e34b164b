package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Websocket backs a jsonrpc.Transport with a gorilla/websocket connection,
// one JSON document per text frame, grounding spec.md §6's WebSocket
// transport mention and the eth_subscribe/newHeads convention it borrows
// from.
type Websocket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DialWebsocket connects to url and wraps the resulting connection as a
// Transport.
func DialWebsocket(ctx context.Context, url string) (*Websocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial websocket: %w", err)
	}
	return &Websocket{conn: conn}, nil
}

// ReadLine reads one text frame and returns it as a string.
func (t *Websocket) ReadLine() (string, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteLine sends line as one text frame.
func (t *Websocket) WriteLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a close frame and closes the underlying connection.
func (t *Websocket) Close() error {
	t.mu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.mu.Unlock()
	return t.conn.Close()
}

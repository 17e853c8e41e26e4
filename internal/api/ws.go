package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"market_go/internal/stream"

	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth happens upstream of this service
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient serialises writes to one connection.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) threadSafeWrite(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsClient) writeFrame(f stream.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.threadSafeWrite(websocket.TextMessage, data)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	s.streamWG.Add(1)
	defer s.streamWG.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		slog.Debug("WebSocket upgrade failed", slog.String("symbol", symbol), slog.Any("error", err))
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streamCtx, cancel)
	defer stop()

	sub := s.streams.Open(ctx, symbol)
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		pingLoop(ctx, client)
	}()

	s.pump(ctx, cancel, client, sub)

	cancel()
	_ = client.threadSafeWrite(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	wg.Wait()
}

// pump forwards frames until the subscription ends or a write fails.
func (s *Server) pump(ctx context.Context, cancel context.CancelFunc, client *wsClient, sub *stream.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := client.writeFrame(f); err != nil {
				slog.Debug("WebSocket write failed", slog.Any("error", err))
				cancel()
				return
			}
		}
	}
}

// readLoop drains client messages so pongs and close frames are processed.
// It returns when the client goes away.
func readLoop(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", slog.Any("error", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

func pingLoop(ctx context.Context, client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

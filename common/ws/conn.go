package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"printwatch/common/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var errClosed = errors.New("websocket: connection is closed")

// Conn is a thin wrapper around *websocket.Conn that serializes writes.
type Conn struct {
	c *websocket.Conn
	// gorilla/websocket panics on concurrent writers.
	writeMu sync.Mutex
}

// UpgradeHTTP upgrades an incoming HTTP request to a websocket Conn.
func UpgradeHTTP(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{c: c}, nil
}

// ReadMessage reads a message and returns the raw bytes.
func (cw *Conn) ReadMessage() ([]byte, error) {
	if cw == nil || cw.c == nil {
		return nil, errClosed
	}
	_, msg, err := cw.c.ReadMessage()
	return msg, err
}

// WriteMessage writes msg as JSON with a write deadline.
func (cw *Conn) WriteMessage(msg *Message, timeout time.Duration) error {
	if cw == nil || cw.c == nil {
		return errClosed
	}
	cw.writeMu.Lock()
	defer cw.writeMu.Unlock()

	if timeout > 0 {
		cw.c.SetWriteDeadline(time.Now().Add(timeout))
	}
	return cw.c.WriteJSON(msg)
}

// WritePing sends a ping control message.
func (cw *Conn) WritePing(timeout time.Duration) error {
	if cw == nil || cw.c == nil {
		return errClosed
	}
	cw.writeMu.Lock()
	defer cw.writeMu.Unlock()

	if timeout > 0 {
		cw.c.SetWriteDeadline(time.Now().Add(timeout))
	}
	return cw.c.WriteMessage(websocket.PingMessage, nil)
}

// WriteClose sends a normal-closure control frame.
func (cw *Conn) WriteClose(text string) error {
	if cw == nil || cw.c == nil {
		return errClosed
	}
	cw.writeMu.Lock()
	defer cw.writeMu.Unlock()
	return cw.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, text), time.Now().Add(writeWait))
}

// Close closes the underlying websocket connection.
func (cw *Conn) Close() error {
	if cw == nil || cw.c == nil {
		return nil
	}
	return cw.c.Close()
}

// RemoteAddr returns the remote address if available.
func (cw *Conn) RemoteAddr() string {
	if cw == nil || cw.c == nil || cw.c.RemoteAddr() == nil {
		return ""
	}
	return cw.c.RemoteAddr().String()
}

// Serve upgrades the request and streams hub messages to the client until
// the client disconnects, the request context ends or the hub stops.
// Inbound messages are read only to process control frames.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := UpgradeHTTP(w, r)
	if err != nil {
		if logger.Global != nil {
			logger.Global.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		}
		return
	}
	defer conn.Close()

	id, msgs := hub.Subscribe()
	defer hub.Unregister(id)
	if logger.Global != nil {
		logger.Global.Debug("Websocket subscriber connected", "subscriber", id, "remote", conn.RemoteAddr())
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.c.SetReadDeadline(time.Now().Add(pongWait))
		conn.c.SetPongHandler(func(string) error {
			return conn.c.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && logger.Global != nil {
					logger.Global.Debug("Websocket read ended", "subscriber", id, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				_ = conn.WriteClose("hub stopped")
				return
			}
			if err := conn.WriteMessage(&msg, writeWait); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WritePing(writeWait); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

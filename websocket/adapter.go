package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomrelay/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

type closeFrame struct {
	code   int
	reason string
}

type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	handler domain.MessageHandler

	closing   chan struct{}
	closeOnce sync.Once
	frame     closeFrame
}

func NewConn(id string, ws *websocket.Conn, h domain.MessageHandler, bufferSize int) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, bufferSize),
		handler: h,
		closing: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues data without blocking. A full queue means the peer is not
// keeping up and the data is refused.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting new data. The write pump flushes what is already
// queued, then sends a close frame with code and reason.
func (c *Conn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.frame = closeFrame{code: code, reason: reason}
		close(c.closing)
	})
	return nil
}

func (c *Conn) Start() {
	c.handler.Connect(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.handler.Disconnect(c)
		c.Close(websocket.CloseNormalClosure, "")
		slog.Info("client disconnected", "clientId", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.Close(websocket.CloseAbnormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.closing:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.frame.code, c.frame.reason))
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Serve upgrades the request and runs the connection until either side
// closes it.
func Serve(upgrader *websocket.Upgrader, h domain.MessageHandler, bufferSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		conn := NewConn(uuid.NewString(), ws, h, bufferSize)
		slog.Info("client connected", "clientId", conn.ID(), "remote", r.RemoteAddr)
		conn.Start()
	}
}

package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cellarena/protocol"
)

const (
	sendQueueSize = 64
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxFrameSize  = 1 << 16
)

var (
	// ErrSendQueueFull is returned by Send when the client is not keeping up.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrConnClosed is returned by Send after Close.
	ErrConnClosed = errors.New("connection closed")
)

// ClientConn wraps a websocket with a bounded outgoing queue drained by its
// own write goroutine.
type ClientConn struct {
	ws    *websocket.Conn
	send  chan []byte
	frame int
	done  chan struct{}
	once  sync.Once
}

func NewClientConn(ws *websocket.Conn, binary bool) *ClientConn {
	frame := websocket.TextMessage
	if binary {
		frame = websocket.BinaryMessage
	}
	return &ClientConn{
		ws:    ws,
		send:  make(chan []byte, sendQueueSize),
		frame: frame,
		done:  make(chan struct{}),
	}
}

// Send queues b without blocking. A full queue drops the frame so that a
// slow client never stalls the room.
func (c *ClientConn) Send(b []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close is idempotent and safe from any goroutine.
func (c *ClientConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.frame, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump decodes frames into intents for the room. When the socket ends
// for any reason the session is detached through the same path as an
// explicit disconnect.
func (c *ClientConn) readPump(room *Room, id SessionID, codec protocol.Codec) {
	defer c.Close()
	defer room.Disconnect(id)
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("read room=%s session=%d: %v", room.ID, id, err)
			}
			return
		}
		intent, err := protocol.DecodeIntent(codec, payload)
		if err != nil {
			room.metrics.IncMalformed()
			Log.Debugf("malformed intent room=%s session=%d: %v", room.ID, id, err)
			continue
		}
		room.Submit(id, intent)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS upgrades /ws?room=<id>&codec=json|msgpack. The client sends a
// join frame once connected.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codec, err := protocol.CodecByName(q.Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, err := m.GetOrCreateRoom(q.Get("room"))
	if errors.Is(err, ErrBadRoomID) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, codec.Binary())
	id, err := room.Connect(client, codec)
	if err != nil {
		_ = client.Close()
		return
	}
	Log.Infof("session attached: room=%s session=%d codec=%s remote=%s", room.ID, id, codec.Name(), r.RemoteAddr)

	go client.writePump()
	go client.readPump(room, id, codec)
}

package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 4 << 20 // camera frames travel on the same socket
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// wsClient is one websocket connection. Frames are queued on send and written
// by a single writer goroutine; gorilla allows one concurrent writer only.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan messages.Envelope
	done chan struct{}
	once sync.Once
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(env messages.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			log.Printf("socket: close %s: %v", c.id, err)
		}
	})
}

// SocketServer upgrades HTTP requests and feeds every frame to the hub.
type SocketServer struct {
	hub   *Hub
	queue int
}

// NewSocketServer serves the websocket endpoint; queue bounds the outbound
// frames buffered per client before new ones are skipped.
func NewSocketServer(hub *Hub, queue int) *SocketServer {
	if queue <= 0 {
		queue = 256
	}
	return &SocketServer{hub: hub, queue: queue}
}

func (s *SocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("socket: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan messages.Envelope, s.queue),
		done: make(chan struct{}),
	}
	log.Printf("socket: client connected: %s (%s)", c.id, r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *SocketServer) readLoop(c *wsClient) {
	defer func() {
		s.hub.Disconnect(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("socket: read %s: %v", c.id, err)
			}
			return
		}
		var env messages.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			log.Printf("socket: bad frame from %s: %.120s", c.id, data)
			continue
		}
		s.hub.Dispatch(c, env)
	}
}

func (s *SocketServer) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				log.Printf("socket: write %s to %s: %v", env.Event, c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package stubserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub держит по одному живому соединению на пользователя и рассылает
// события участникам чатов.
type hub struct {
	mu    sync.Mutex
	conns map[int64]*websocket.Conn
}

func newHub() *hub {
	return &hub{conns: make(map[int64]*websocket.Conn)}
}

func (h *hub) register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	old := h.conns[userID]
	h.conns[userID] = conn
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (h *hub) unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[userID] == conn {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
	conn.Close()
}

// send marshals the payload and delivers it to every recipient with a live
// connection, skipping exclude. Write failures just drop the connection.
func (h *hub) send(recipients []int64, exclude int64, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range recipients {
		if id == exclude {
			continue
		}
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			conn.Close()
			delete(h.conns, id)
		}
	}
}

// serve upgrades the request and blocks reading until the peer goes away.
// Incoming frames are ignored: the push channel is server-to-client only.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.register(userID, conn)
	defer h.unregister(userID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vehicle-remote/internal/types"
)

// wsClient streams snapshots to one WebSocket. Only the latest pending
// snapshot is kept so a slow reader never stalls the publisher.
type wsClient struct {
	conn      *websocket.Conn
	latest    chan types.VehicleState
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	offered bool
	seq     uint64
}

// offer queues st unless a newer snapshot was already queued.
func (c *wsClient) offer(st types.VehicleState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offered && st.LastUpdateSeq < c.seq {
		return
	}
	c.offered = true
	c.seq = st.LastUpdateSeq

	for {
		select {
		case c.latest <- st:
			return
		default:
		}
		select {
		case <-c.latest:
		default:
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		conn:   conn,
		latest: make(chan types.VehicleState, 1),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	unsubscribe := s.ctl.Bridge().Subscribe(c.offer)
	st, _ := s.ctl.Bridge().Snapshot()
	c.offer(st)

	// Reader: detect disconnects.
	go func() {
		defer c.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			unsubscribe()
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			if err := conn.Close(); err != nil {
				s.logger.Debugf("Failed to close websocket: %v", err)
			}
		}()
		for {
			select {
			case <-c.done:
				return
			case st := <-c.latest:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(stateResponse{Seq: st.LastUpdateSeq, State: st}); err != nil {
					s.logger.Debugf("WebSocket write failed: %v", err)
					return
				}
			}
		}
	}()
}

package dispatch

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/chauffeur-dispatch/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// WSSession is one connected driver client.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(notice models.OrderNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(notice)
}

// WSRegistry holds live driver sessions and implements Notifier.
// Drivers without a session still get their notices via inbox polling.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Notify(driverID string, notice models.OrderNotice) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(notice); err != nil {
		// a dead connection never recovers; evict it so the driver's
		// slot is free for the next dial
		r.evict(driverID, s)
		return err
	}
	return nil
}

// evict drops the session only if it is still the registered one, so
// a reconnect racing a failed write keeps its fresh connection.
func (r *WSRegistry) evict(driverID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[driverID]; ok && cur == s {
		_ = cur.conn.Close()
		delete(r.sessions, driverID)
	}
}

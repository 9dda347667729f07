package server

import (
	"sync"

	"github.com/coder/websocket"
)

// PlayerConnection is the seat a socket is bound to after create, join or
// reconnect.
type PlayerConnection struct {
	GameID   string
	PlayerID string
	Username string
}

type seatKey struct {
	gameID   string
	playerID string
}

type ConnectionManager struct {
	connections map[string]*websocket.Conn  // connectionID → socket
	players     map[string]PlayerConnection // connectionID → seat
	seats       map[seatKey]string          // seat → connectionID
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		players:     make(map[string]PlayerConnection),
		seats:       make(map[seatKey]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// RemoveConnection forgets a socket. The returned seat is set only when
// this connection was still the one bound to it, which is when the player
// should be marked disconnected.
func (cm *ConnectionManager) RemoveConnection(id string) (PlayerConnection, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	player, bound := cm.players[id]
	delete(cm.connections, id)
	delete(cm.players, id)
	if !bound {
		return PlayerConnection{}, false
	}

	key := seatKey{player.GameID, player.PlayerID}
	if cm.seats[key] != id {
		return PlayerConnection{}, false
	}
	delete(cm.seats, key)
	return player, true
}

// Bind attaches a connection to a seat and returns the connection that held
// the seat before, if any.
func (cm *ConnectionManager) Bind(connectionID string, player PlayerConnection) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, ok := cm.players[connectionID]; ok {
		oldKey := seatKey{old.GameID, old.PlayerID}
		if cm.seats[oldKey] == connectionID {
			delete(cm.seats, oldKey)
		}
	}

	key := seatKey{player.GameID, player.PlayerID}
	previous := cm.seats[key]
	if previous != "" && previous != connectionID {
		delete(cm.players, previous)
	}
	if previous == connectionID {
		previous = ""
	}

	cm.players[connectionID] = player
	cm.seats[key] = connectionID
	return previous
}

// Unbind detaches a connection from its seat but keeps the socket open.
func (cm *ConnectionManager) Unbind(connectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	player, ok := cm.players[connectionID]
	if !ok {
		return
	}
	delete(cm.players, connectionID)
	key := seatKey{player.GameID, player.PlayerID}
	if cm.seats[key] == connectionID {
		delete(cm.seats, key)
	}
}

func (cm *ConnectionManager) GetPlayer(connectionID string) (PlayerConnection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	p, ok := cm.players[connectionID]
	return p, ok
}

func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

func (cm *ConnectionManager) ConnectionFor(gameID, playerID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.seats[seatKey{gameID, playerID}]
}

// GameConnections returns the sockets bound to a game, keyed by player id.
func (cm *ConnectionManager) GameConnections(gameID string) map[string]*websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make(map[string]*websocket.Conn)
	for key, connID := range cm.seats {
		if key.gameID != gameID {
			continue
		}
		if conn := cm.connections[connID]; conn != nil {
			out[key.playerID] = conn
		}
	}
	return out
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// CloseAll closes every open socket.
func (cm *ConnectionManager) CloseAll(code websocket.StatusCode, reason string) {
	cm.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(cm.connections))
	for _, conn := range cm.connections {
		if conn != nil {
			conns = append(conns, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(code, reason)
	}
}

package server

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"golang.org/x/time/rate"
)

const (
	CodeInvalidMessageType parchis.Code = "INVALID_MESSAGE_TYPE"
	CodeRateLimited        parchis.Code = "RATE_LIMITED"
	CodeUsernameInvalid    parchis.Code = "USERNAME_INVALID"
	CodeUsernameTaken      parchis.Code = "USERNAME_TAKEN"

	MaxUsernameLength = 20
)

// RateLimiter keeps one token bucket per connection, so a noisy client only
// throttles itself.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter allows perSecond messages per connection on average with
// bursts of up to burst messages.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimiter) Allow(connectionID string) bool {
	return r.AllowAt(connectionID, time.Now())
}

func (r *RateLimiter) AllowAt(connectionID string, now time.Time) bool {
	r.mu.Lock()
	l, ok := r.limiters[connectionID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[connectionID] = l
	}
	r.mu.Unlock()

	return l.AllowN(now, 1)
}

// RemoveConnection drops the bucket of a closed connection.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, connectionID)
}

func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// ConnectionHealth tracks the last message time of each connection.
type ConnectionHealth struct {
	lastActivity map[string]time.Time
	now          func() time.Time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
		now:          time.Now,
	}
}

func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = h.now()
}

// IsInactive reports whether a tracked connection has been silent for
// longer than timeout. Unknown connections are never inactive.
func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	last, ok := h.lastActivity[connectionID]
	if !ok {
		return false
	}
	return h.now().Sub(last) > timeout
}

func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := h.now()
	for connID, last := range h.lastActivity {
		if now.Sub(last) > timeout {
			inactive = append(inactive, connID)
		}
	}
	return inactive
}

func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

var validMessageTypes = map[string]bool{
	"ping":                true,
	"create_game":         true,
	"join_game":           true,
	"reconnect":           true,
	"start_game":          true,
	"pause_game":          true,
	"resume_game":         true,
	"player_action":       true,
	"request_game_state":  true,
	"get_available_moves": true,
	"leave_game":          true,
}

func ValidateMessageType(msgType string) error {
	if !validMessageTypes[msgType] {
		return parchis.Errorf(CodeInvalidMessageType, "unknown message type '%s'", msgType)
	}
	return nil
}

// ValidateUsername trims the name and checks its length.
func ValidateUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", parchis.Errorf(CodeUsernameInvalid, "username cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", parchis.Errorf(CodeUsernameInvalid, "username too long (max %d characters)", MaxUsernameLength)
	}
	return name, nil
}

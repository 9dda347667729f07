package server

import (
	"errors"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CodeTokenInvalid parchis.Code = "TOKEN_INVALID"
	CodeTokenExpired parchis.Code = "TOKEN_EXPIRED"

	sessionIssuer = "albion-parchis"
)

type SessionInfo struct {
	GameID   string
	PlayerID string
	Username string
}

type sessionClaims struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// SessionManager issues and checks signed session tokens. Tokens carry the
// whole session, so they survive a server restart as long as the secret
// stays the same.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (sm *SessionManager) Issue(info SessionInfo) (string, error) {
	now := sm.now()
	claims := sessionClaims{
		GameID:   info.GameID,
		PlayerID: info.PlayerID,
		Username: info.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			Subject:   info.PlayerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
}

func (sm *SessionManager) Parse(token string) (SessionInfo, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionInfo{}, parchis.Errorf(CodeTokenExpired, "session token has expired")
	case err != nil:
		return SessionInfo{}, parchis.Errorf(CodeTokenInvalid, "invalid session token")
	}

	if claims.GameID == "" || claims.PlayerID == "" {
		return SessionInfo{}, parchis.Errorf(CodeTokenInvalid, "session token is missing its game")
	}
	return SessionInfo{
		GameID:   claims.GameID,
		PlayerID: claims.PlayerID,
		Username: claims.Username,
	}, nil
}

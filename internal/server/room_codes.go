package server

import (
	"math/rand/v2"
	"strings"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
)

const CodeInvalidRoomCode parchis.Code = "INVALID_ROOM_CODE"

// GenerateRoomCode picks a 4 letter code that is not in used.
func GenerateRoomCode(used map[string]bool) string {
	for {
		code := make([]byte, 4)
		for i := range code {
			code[i] = 'A' + byte(rand.IntN(26))
		}
		if !used[string(code)] {
			return string(code)
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != 4 {
		return parchis.Errorf(CodeInvalidRoomCode, "room code must be exactly 4 characters")
	}
	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return parchis.Errorf(CodeInvalidRoomCode, "room code must contain only letters A-Z")
		}
	}
	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package server_test

import (
	"testing"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/server"
	"github.com/stretchr/testify/assert"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)
	usedCodes := make(map[string]bool)

	for range 100 {
		code := server.GenerateRoomCode(usedCodes)
		assert.Len(code, 4)
		assert.NoError(server.ValidateRoomCode(code))
	}
}

func TestGenerateRoomCodeAvoidsUsedCodes(t *testing.T) {
	usedCodes := map[string]bool{"AAAA": true, "ZZZZ": true, "LUDO": true}
	generated := make(map[string]bool)

	for range 500 {
		code := server.GenerateRoomCode(usedCodes)
		assert.False(t, usedCodes[code], "code %s was already in use", code)
		generated[code] = true
		usedCodes[code] = true
	}
	assert.Len(t, generated, 500)
}

func TestValidateRoomCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
		msg   string
	}{
		{code: "BEAR", valid: true},
		{code: "game", valid: true},
		{code: "", msg: "exactly 4 characters"},
		{code: "ABC", msg: "exactly 4 characters"},
		{code: "ABCDE", msg: "exactly 4 characters"},
		{code: "A1B2", msg: "only letters A-Z"},
		{code: "T@ST", msg: "only letters A-Z"},
		{code: " ABC", msg: "only letters A-Z"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := server.ValidateRoomCode(tt.code)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.msg)
			assert.Equal(t, server.CodeInvalidRoomCode, parchis.CodeOf(err))
		})
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "LUDO", server.NormalizeRoomCode(" ludo "))
}

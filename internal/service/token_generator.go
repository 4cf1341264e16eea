package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const defaultTokenBytes = 64

// RandomTokenGenerator emite tokens hex de N bytes aleatorios.
type RandomTokenGenerator struct {
	size int
}

func NewRandomTokenGenerator(size int) *RandomTokenGenerator {
	if size < 16 {
		size = defaultTokenBytes
	}
	return &RandomTokenGenerator{size: size}
}

func (g *RandomTokenGenerator) GenerateToken() (string, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifyToken solo valida formato: hex en minusculas del largo esperado.
func (g *RandomTokenGenerator) VerifyToken(token string) bool {
	if len(token) != g.size*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Package joincode issues the short codes players type to find a lobby or a
// relay session.
package joincode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	Length  = 6
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func Generate() (string, error) {
	code := make([]byte, Length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// Normalize upper-cases a typed code so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

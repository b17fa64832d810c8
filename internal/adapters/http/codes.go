package http

import (
	"crypto/rand"
	"math/big"
)

const (
	CodeLength  = 8
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateCode returns a random room code. Uniqueness is only checked
// against rooms currently in memory.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	limit := big.NewInt(int64(len(codeCharset)))
	for i := range code {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

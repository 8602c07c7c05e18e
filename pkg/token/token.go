package token

import (
	"crypto/rand"
	"fmt"
)

const (
	// URL-safe, no padding characters and no look-alike separators.
	codeAlphabet              = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	errGenerateRandomBytesFmt = "failed to generate random bytes: %w"
	errLengthPositiveFmt      = "length must be positive"
)

// Generate returns a cryptographically random URL-safe code of exactly length characters.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf(errLengthPositiveFmt)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf(errGenerateRandomBytesFmt, err)
	}

	// 64 symbols: the low six bits index the alphabet uniformly.
	for i, b := range bytes {
		bytes[i] = codeAlphabet[b&0x3f]
	}

	return string(bytes), nil
}

// IsWellFormed reports whether code has the given length and only alphabet characters.
func IsWellFormed(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func ExtractPrefix(token string, length int) string {
	if len(token) < length {
		return token
	}
	return token[:length]
}

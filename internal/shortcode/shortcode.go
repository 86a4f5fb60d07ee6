// Package shortcode generates random alphanumeric short codes.
package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength matches the code length of the classic shortener form
// (six alphanumeric characters).
const DefaultLength = 6

// Generator produces random codes of a fixed length. It gives no
// uniqueness guarantee; collision handling belongs to the record store.
type Generator struct {
	length int
}

// New creates a Generator producing codes of the given length.
// A non-positive length falls back to DefaultLength.
func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a code of exactly g.length characters drawn from the
// alphanumeric alphabet, using crypto/rand.
func (g *Generator) Generate() (string, error) {
	code := make([]byte, g.length)
	alphabetSize := big.NewInt(int64(len(alphabet)))
	for i := range code {
		index, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("in internal/shortcode/shortcode.go/Generate(): error while `rand.Int()` calling: %w", err)
		}
		code[i] = alphabet[index.Int64()]
	}

	return string(code), nil
}

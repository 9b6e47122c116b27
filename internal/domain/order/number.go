package order

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"
)

const (
	numberPrefix   = "ORD"
	numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	numberSuffix   = 6
)

var numberPattern = regexp.MustCompile(`^ORD-\d{8}-[A-Z0-9]{6}$`)

// NumberGenerator produces human-readable order numbers: ORD-YYYYMMDD-XXXXXX
type NumberGenerator struct {
	random io.Reader
	now    func() time.Time
}

// NewNumberGenerator returns a generator backed by crypto/rand
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{random: rand.Reader, now: time.Now}
}

// Next returns a candidate number. Uniqueness is enforced by the caller
// against the store.
func (g *NumberGenerator) Next() (string, error) {
	max := big.NewInt(int64(len(numberAlphabet)))
	suffix := make([]byte, numberSuffix)
	for i := range suffix {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", numberPrefix, g.now().UTC().Format("20060102"), suffix), nil
}

// IsValidNumber reports whether s has the order number shape
func IsValidNumber(s string) bool {
	return numberPattern.MatchString(s)
}

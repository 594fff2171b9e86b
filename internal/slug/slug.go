// Package slug produces and validates the short, URL-safe identifiers that
// address links. Generation is uniform over the alphabet; collisions are
// possible by design and are resolved by the caller's retry policy.
package slug

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

	// Length is the size of generated slugs. 64^6 values keep the
	// collision rate negligible for the retry budget in the service.
	Length = 6
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// Generate returns a random slug of Length characters drawn uniformly from
// the URL-safe alphabet using crypto/rand.
func Generate() string {
	b := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = alphabet[n.Int64()]
	}

	return string(b)
}

// Validate reports whether s is an acceptable slug: 3 to 32 characters from
// [A-Za-z0-9_-]. Matching is case-sensitive, as is slug lookup.
func Validate(s string) bool {
	return slugPattern.MatchString(s)
}

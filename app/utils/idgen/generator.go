package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

// publicIDEntropy is the number of random bytes behind a public id.
const publicIDEntropy = 12

var suffixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewPublicID returns "<prefix>_<16 url-safe chars>".
func NewPublicID(prefix string) (string, error) {
	buf := make([]byte, publicIDEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return fmt.Sprintf("%s_%s", prefix, base64.RawURLEncoding.EncodeToString(buf)), nil
}

// ValidPublicID reports whether id looks like NewPublicID(prefix) output.
func ValidPublicID(id, prefix string) bool {
	head := prefix + "_"
	if len(id) <= len(head) || id[:len(head)] != head {
		return false
	}
	return suffixPattern.MatchString(id[len(head):])
}

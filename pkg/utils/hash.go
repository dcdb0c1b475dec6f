package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashText produces a stable cache key for a piece of text.
func HashText(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:16])
}

package cache

import (
	"encoding/hex"
	"os"

	"lukechampine.com/blake3"
)

// FileHash returns the 16-hex-character prefix of the BLAKE3 hash of the
// file's current content, or "" when the file cannot be read. Used as the
// content-address component of cache keys: a key match guarantees the cached
// value was computed from identical bytes.
func FileHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

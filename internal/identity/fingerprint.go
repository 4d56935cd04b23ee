package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const fingerprintChunkSize = 4096

// Fingerprint computes the SHA-256 digest of the file's full byte contents,
// reading in fixed-size chunks so memory use stays bounded regardless of file
// size. Two byte-identical files produce the same digest regardless of path.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, fingerprintChunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const hashBlockSize = 64 * 1024

// ContentHash digests a file's raw bytes in fixed-size blocks so arbitrarily
// large files never load fully into memory.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

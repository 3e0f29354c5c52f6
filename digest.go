package ragsync

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// DigestBytes computes the content digest of a byte slice as a hex string.
func DigestBytes(data []byte) string {
	return formatDigest(xxhash.Sum64(data))
}

// DigestString computes the content digest of a string as a hex string.
func DigestString(s string) string {
	return formatDigest(xxhash.Sum64String(s))
}

// DigestFile computes the content digest of a file without loading it fully
// into memory.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return formatDigest(h.Sum64()), nil
}

func formatDigest(sum uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	return hex.EncodeToString(b[:])
}

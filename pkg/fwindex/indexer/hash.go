package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Supported digest algorithms.
const (
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"
)

// ErrUnknownHash is returned for an unsupported digest algorithm.
var ErrUnknownHash = errors.New("unknown hash algorithm")

func newHasher(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case HashSHA256:
		return sha256.New, nil
	case HashBLAKE2b:
		return func() hash.Hash {
			h, _ := blake2b.New256(nil) // only fails for oversized keys
			return h
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownHash, algorithm)
	}
}

// digest streams r through a fresh hash and returns the hex digest and the
// number of bytes read.
func digest(newHash func() hash.Hash, r io.Reader) (string, int64, error) {
	h := newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

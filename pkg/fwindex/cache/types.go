// Package cache persists content digests between index runs so unchanged
// files are not re-hashed.
package cache

import (
	"bytes"
	"encoding/gob"
)

// CacheVersion is incremented when the entry format changes.
const CacheVersion = 1

// KeySeparator separates root from relative path in cache keys.
const KeySeparator = '\x00'

// HashEntry is a cached digest together with the file identity it was
// computed for.
type HashEntry struct {
	Version   int
	Size      int64
	Mtime     int64 // UnixNano
	Algorithm string
	Digest    string
}

// Matches reports whether the entry is still valid for a file with the given
// size, modification time, and digest algorithm.
func (e *HashEntry) Matches(size, mtime int64, algorithm string) bool {
	return e.Version == CacheVersion &&
		e.Size == size &&
		e.Mtime == mtime &&
		e.Algorithm == algorithm
}

// Encode serializes the entry to bytes using gob.
func (e *HashEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *HashEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a cache key from root and relative path.
// Format: <root>\x00<relative_path>
func MakeKey(root, relPath string) []byte {
	return []byte(root + string(KeySeparator) + relPath)
}

// ParseKey extracts root and relative path from a cache key.
func ParseKey(key []byte) (root, relPath string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys under a root.
func MakeKeyPrefix(root string) []byte {
	return []byte(root + string(KeySeparator))
}

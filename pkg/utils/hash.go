package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"hash/fnv"
)

// HashString generates a SHA1 hash of a string
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// ShardIndex maps key onto one of n shards using FNV-1a. The mapping is
// stable across processes so a vessel always lands on the same worker.
func ShardIndex(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

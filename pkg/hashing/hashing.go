// Package hashing wraps the additive hash functions the Shard Index
// Calculator dispatches to for Murmur3Mod and XXHashMod, behind one
// interface so pkg/sharding/calc.go can select an implementation by
// name without importing either library directly.
package hashing

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunction defines the interface for hash functions
type HashFunction interface {
	Hash(key string) uint64
}

// Murmur3Hash implements Murmur3 hash
type Murmur3Hash struct{}

func (m *Murmur3Hash) Hash(key string) uint64 {
	h := murmur3.New64()
	h.Write([]byte(key))
	return h.Sum64()
}

// XXHash implements xxHash
type XXHash struct{}

func (x *XXHash) Hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// NewHashFunction creates a hash function based on name
func NewHashFunction(name string) HashFunction {
	switch name {
	case "xxhash":
		return &XXHash{}
	case "murmur3":
		fallthrough
	default:
		return &Murmur3Hash{}
	}
}

package hashfuncs

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"golang.org/x/exp/constraints"
)

type HashSum64[K any] interface {
	HashSum64(k K) uint64
}

type HashSum64Func[K any] func(k K) uint64

func (f HashSum64Func[K]) HashSum64(k K) uint64 { return f(k) }

type IntegerHasher[K constraints.Integer] struct{}

func (h IntegerHasher[K]) HashSum64(k K) uint64 {
	return uint64(k)
}

type StringHasher struct{}

func (sh StringHasher) HashSum64(k string) uint64 {
	return xxhash.Sum64String(k)
}

type ByteSliceHasher struct{}

func (sh ByteSliceHasher) HashSum64(k []byte) uint64 {
	return xxhash.Sum64(k)
}

type MurmurStringHasher struct{}

func (mh MurmurStringHasher) HashSum64(k string) uint64 {
	return murmur3.Sum64([]byte(k))
}

type MurmurByteSliceHasher struct{}

func (mh MurmurByteSliceHasher) HashSum64(k []byte) uint64 {
	return murmur3.Sum64(k)
}

// HashOrder orders values by their 64-bit hash. It gives a deterministic
// total order over values that have no natural one; equal hashes compare
// equal.
func HashOrder[K any](h HashSum64[K]) func(a, b K) int {
	return func(a, b K) int {
		ha, hb := h.HashSum64(a), h.HashSum64(b)
		if ha < hb {
			return -1
		} else if ha > hb {
			return 1
		}
		return 0
	}
}

// GetStringHasher maps a command line name to a string hasher.
func GetStringHasher(name string) (HashSum64[string], bool) {
	switch name {
	case "xxhash", "":
		return StringHasher{}, true
	case "murmur3":
		return MurmurStringHasher{}, true
	default:
		return nil, false
	}
}

package store

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// bloomFilter answers "maybe" or "no" for partition keys of a segment.
// Index i of a key is h1 + i*h2 over the two halves of its murmur3 hash.
type bloomFilter struct {
	bits   []uint64
	size   uint64
	hashes int
}

func newBloomFilter(expectedItems int, falsePositiveRate float64) *bloomFilter {
	size := optimalSize(expectedItems, falsePositiveRate)
	return &bloomFilter{
		bits:   make([]uint64, (size+63)/64),
		size:   size,
		hashes: optimalHashCount(expectedItems, size),
	}
}

func (bf *bloomFilter) add(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	for i := range bf.hashes {
		idx := (h1 + uint64(i)*h2) % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
}

func (bf *bloomFilter) mayContain(key []byte) bool {
	h1, h2 := murmur3.Sum128(key)
	for i := range bf.hashes {
		idx := (h1 + uint64(i)*h2) % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// m = -n*ln(p) / ln(2)^2
func optimalSize(expectedItems int, falsePositiveRate float64) uint64 {
	n := float64(max(expectedItems, 1))
	m := -n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	return uint64(max(m, 64))
}

// k = m/n * ln(2)
func optimalHashCount(expectedItems int, size uint64) int {
	k := int(float64(size) / float64(max(expectedItems, 1)) * math.Ln2)
	return min(max(k, 1), 10)
}

package commtypes

import "sync"

const (
	minPooledBufSize = 16
	numBufPools      = 9
)

// buckets grow by a factor of four: 16B, 64B, ... 1MB; larger requests are
// served by the last bucket.
var bufPools = func() [numBufPools]*sync.Pool {
	var pools [numBufPools]*sync.Pool
	size := minPooledBufSize
	for i := 0; i < numBufPools; i++ {
		sz := size
		pools[i] = &sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
		size *= 4
	}
	return pools
}()

func bufPoolIdx(size int) int {
	idx := 0
	limit := minPooledBufSize
	for idx < numBufPools-1 && size > limit {
		limit *= 4
		idx++
	}
	return idx
}

// PopBuffer returns a buffer with at least size bytes of capacity.
func PopBuffer(size int) *[]byte {
	p := bufPools[bufPoolIdx(size)]
	bs := p.Get().(*[]byte)
	if cap(*bs) < size {
		p.Put(bs)
		r := make([]byte, size)
		return &r
	}
	return bs
}

// PushBuffer hands a buffer obtained from PopBuffer back to the pool.
func PushBuffer(bs *[]byte) {
	if bs == nil {
		return
	}
	c := cap(*bs)
	idx := bufPoolIdx(c)
	// a buffer smaller than its bucket's nominal size would be handed out
	// to requests it cannot hold
	if idx > 0 && c < minPooledBufSize<<(2*idx) {
		idx--
	}
	*bs = (*bs)[:0]
	bufPools[idx].Put(bs)
}

package hashfuncs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashOrderIsTotalAndStable(t *testing.T) {
	for _, name := range []string{"xxhash", "murmur3"} {
		h, ok := GetStringHasher(name)
		assert.True(t, ok)
		c := HashOrder[string](h)
		assert.Zero(t, c("a", "a"))
		assert.Equal(t, -c("a", "b"), c("b", "a"))
		assert.Equal(t, c("x", "y"), c("x", "y"))
	}
	_, ok := GetStringHasher("md5")
	assert.False(t, ok)
}

func TestIntegerHasher(t *testing.T) {
	c := HashOrder[int](IntegerHasher[int]{})
	assert.Negative(t, c(1, 2))
	assert.Equal(t, uint64(7), HashSum64Func[int](func(k int) uint64 { return uint64(k) }).HashSum64(7))
	assert.Equal(t, StringHasher{}.HashSum64("k"), ByteSliceHasher{}.HashSum64([]byte("k")))
	assert.Equal(t, MurmurStringHasher{}.HashSum64("k"), MurmurByteSliceHasher{}.HashSum64([]byte("k")))
}

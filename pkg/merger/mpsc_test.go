package merger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMpscEmpty(t *testing.T) {
	q := newMpscQueue[int]()
	_, ok := q.pop()
	assert.False(t, ok)
	q.push(1)
	q.push(2)
	v, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = q.pop()
	assert.False(t, ok)
}

func TestMpscConcurrentPush(t *testing.T) {
	producers := 8
	perProducer := 10000
	q := newMpscQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(p*perProducer + i)
			}
		}()
	}
	wg.Wait()
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	total := 0
	for {
		v, ok := q.pop()
		if !ok {
			break
		}
		p := v / perProducer
		// each producer's values come out in push order
		require.Greater(t, v, last[p])
		last[p] = v
		total++
	}
	assert.Equal(t, producers*perProducer, total)
}

package source_sink

import (
	"context"
	"testing"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func newTestStreamSource(t *testing.T, ctx context.Context, rdb *redis.Client, key string, batch int64) *RedisStreamSource[string] {
	t.Helper()
	src, err := NewRedisStreamSource[string](ctx, rdb, &RedisStreamSourceConfig{
		Key:         key,
		Batch:       batch,
		Block:       -1,
		SerdeFormat: commtypes.MSGP,
	}, commtypes.StringSerdeG{})
	require.NoError(t, err)
	return src
}

func TestRedisStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	sink, err := NewRedisStreamSink[string](rdb, "merged", "left", commtypes.MSGP, commtypes.StringSerdeG{})
	require.NoError(t, err)
	src := newTestStreamSource(t, ctx, rdb, "merged", 2)
	src.clock = func() int64 { return 1000 }

	_, err = src.Emit()
	assert.ErrorIs(t, err, common_errors.ErrStreamEmpty)
	assert.Equal(t, int64(1000), src.CurrentSystemTime())

	want := entriesOf(1, 2, 3)
	for _, e := range want {
		require.NoError(t, sink.Produce(ctx, e))
	}
	require.NoError(t, sink.Flush(ctx))

	// batch of two, the third item arrives with the second fetch
	e, err := src.Emit()
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.BusinessTs())
	assert.Equal(t, int64(10), src.CurrentSystemTime())
	e, err = src.Emit()
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.BusinessTs())
	e, err = src.Emit()
	require.NoError(t, err)
	assert.Equal(t, "m", e.Message())
	assert.Equal(t, int64(3), e.BusinessTs())
	assert.Equal(t, int64(30), e.SystemTs())

	// caught up, the wall clock takes over
	_, err = src.Emit()
	assert.ErrorIs(t, err, common_errors.ErrStreamEmpty)
	assert.Equal(t, int64(1000), src.CurrentSystemTime())

	require.NoError(t, sink.Produce(ctx, commtypes.NewEntry("late", 4, 2000)))
	require.NoError(t, sink.Close(ctx))
	e, err = src.Emit()
	require.NoError(t, err)
	assert.Equal(t, "late", e.Message())
	_, err = src.Emit()
	assert.ErrorIs(t, err, common_errors.ErrEndOfStream)
	_, err = src.Emit()
	assert.ErrorIs(t, err, common_errors.ErrEndOfStream)
	assert.Equal(t, int64(2000), src.CurrentSystemTime())
}

func TestRedisStreamStartsAfterID(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	sink, err := NewRedisStreamSink[string](rdb, "in", "", commtypes.MSGP, commtypes.StringSerdeG{})
	require.NoError(t, err)
	require.NoError(t, sink.Produce(ctx, commtypes.NewEntry("old", 1, 1)))
	ids, err := rdb.XRange(ctx, "in", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	src, err := NewRedisStreamSource[string](ctx, rdb, &RedisStreamSourceConfig{
		Key:         "in",
		StartID:     ids[0].ID,
		Block:       -1,
		SerdeFormat: commtypes.MSGP,
	}, commtypes.StringSerdeG{})
	require.NoError(t, err)
	require.NoError(t, sink.Produce(ctx, commtypes.NewEntry("new", 2, 2)))
	require.NoError(t, sink.Close(ctx))

	got := collect[string](t, src)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Message())
}

func TestRedisStreamBadItem(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	src := newTestStreamSource(t, ctx, rdb, "in", 0)

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "in",
		Values: map[string]interface{}{"other": "x"},
	}).Err())
	_, err := src.Emit()
	assert.ErrorIs(t, err, common_errors.ErrEmptyPayload)

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "in",
		Values: map[string]interface{}{recordField: "\xc1"},
	}).Err())
	_, err = src.Emit()
	require.Error(t, err)
	assert.False(t, common_errors.IsStreamEmptyError(err))
}

package source_sink

import (
	"context"
	"fmt"
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"github.com/gammazero/deque"
	"github.com/go-redis/redis/v9"
	"golang.org/x/xerrors"
)

const (
	recordField = "rec"
	eosField    = "eos"
)

// RedisStreamSource reads entries from a redis stream. Each stream item
// carries one encoded commtypes.EntryRecord under the "rec" field; an item
// with an "eos" field ends the stream.
type RedisStreamSource[M any] struct {
	ctx         context.Context
	rdb         *redis.Client
	key         string
	lastID      string
	batch       int64
	block       time.Duration
	buffer      *deque.Deque[commtypes.Entry[M]]
	ended       bool
	recordSerde commtypes.SerdeG[commtypes.EntryRecord]
	msgSerde    commtypes.SerdeG[M]
	clock       Clock
	sysTs       int64
}

var _ = FlowSource[int](&RedisStreamSource[int]{})

type RedisStreamSourceConfig struct {
	Key string
	// StartID is the id after which reading starts; "0" reads the whole
	// stream, "$" only new items.
	StartID string
	// Batch is the maximum number of items fetched per round trip.
	Batch int64
	// Block bounds how long a fetch may wait for new items. Negative
	// never waits.
	Block       time.Duration
	SerdeFormat commtypes.SerdeFormat
}

func NewRedisStreamSource[M any](ctx context.Context, rdb *redis.Client, config *RedisStreamSourceConfig,
	msgSerde commtypes.SerdeG[M],
) (*RedisStreamSource[M], error) {
	recordSerde, err := commtypes.GetEntryRecordSerdeG(config.SerdeFormat)
	if err != nil {
		return nil, err
	}
	startID := config.StartID
	if startID == "" {
		startID = "0"
	}
	batch := config.Batch
	if batch <= 0 {
		batch = 128
	}
	return &RedisStreamSource[M]{
		ctx:         ctx,
		rdb:         rdb,
		key:         config.Key,
		lastID:      startID,
		batch:       batch,
		block:       config.Block,
		buffer:      deque.New[commtypes.Entry[M]](int(batch)),
		recordSerde: recordSerde,
		msgSerde:    msgSerde,
		clock:       WallClockMillis,
	}, nil
}

func (s *RedisStreamSource[M]) Emit() (commtypes.Entry[M], error) {
	if s.buffer.Len() == 0 {
		if s.ended {
			return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
		}
		if err := s.fetch(); err != nil {
			return commtypes.Entry[M]{}, err
		}
		if s.buffer.Len() == 0 {
			if s.ended {
				return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
			}
			return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
		}
	}
	e := s.buffer.PopFront()
	if e.SystemTs() > s.sysTs {
		s.sysTs = e.SystemTs()
	}
	return e, nil
}

func (s *RedisStreamSource[M]) fetch() error {
	streams, err := s.rdb.XRead(s.ctx, &redis.XReadArgs{
		Streams: []string{s.key, s.lastID},
		Count:   s.batch,
		Block:   s.block,
	}).Result()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		return xerrors.Errorf("xread %s: %w", s.key, err)
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			s.lastID = msg.ID
			if _, ok := msg.Values[eosField]; ok {
				s.ended = true
				return nil
			}
			raw, ok := msg.Values[recordField]
			if !ok {
				return xerrors.Errorf("stream %s item %s: %w", s.key, msg.ID, common_errors.ErrEmptyPayload)
			}
			e, err := s.decode(raw)
			if err != nil {
				return xerrors.Errorf("stream %s item %s: %w", s.key, msg.ID, err)
			}
			s.buffer.PushBack(e)
		}
	}
	return nil
}

func (s *RedisStreamSource[M]) decode(raw interface{}) (commtypes.Entry[M], error) {
	var bs []byte
	switch v := raw.(type) {
	case string:
		bs = []byte(v)
	case []byte:
		bs = v
	default:
		return commtypes.Entry[M]{}, fmt.Errorf("unexpected field type %T", raw)
	}
	rec, err := s.recordSerde.Decode(bs)
	if err != nil {
		return commtypes.Entry[M]{}, err
	}
	return commtypes.ToEntry(rec, s.msgSerde)
}

// CurrentSystemTime is the wall clock while the stream is idle and caught
// up, otherwise the system time of the newest item handed out.
func (s *RedisStreamSource[M]) CurrentSystemTime() int64 {
	if s.buffer.Len() == 0 && !s.ended {
		if now := s.clock(); now > s.sysTs {
			return now
		}
	}
	return s.sysTs
}

// RedisStreamSink appends entries to a redis stream in the format
// RedisStreamSource reads.
type RedisStreamSink[M any] struct {
	rdb         *redis.Client
	key         string
	source      string
	recordSerde commtypes.SerdeG[commtypes.EntryRecord]
	msgSerde    commtypes.SerdeG[M]
}

var _ = Sink[int](&RedisStreamSink[int]{})

func NewRedisStreamSink[M any](rdb *redis.Client, key string, source string, serdeFormat commtypes.SerdeFormat,
	msgSerde commtypes.SerdeG[M],
) (*RedisStreamSink[M], error) {
	recordSerde, err := commtypes.GetEntryRecordSerdeG(serdeFormat)
	if err != nil {
		return nil, err
	}
	return &RedisStreamSink[M]{
		rdb:         rdb,
		key:         key,
		source:      source,
		recordSerde: recordSerde,
		msgSerde:    msgSerde,
	}, nil
}

func (s *RedisStreamSink[M]) Produce(ctx context.Context, e commtypes.Entry[M]) error {
	bs, buf, err := encodeRecord(e, s.source, s.msgSerde, s.recordSerde)
	if err != nil {
		return err
	}
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{recordField: bs},
	}).Result()
	if buf != nil {
		*buf = bs
		commtypes.PushBuffer(buf)
	}
	if err != nil {
		return xerrors.Errorf("xadd %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStreamSink[M]) Flush(ctx context.Context) error {
	return nil
}

// Close appends the end of stream marker.
func (s *RedisStreamSink[M]) Close(ctx context.Context) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{eosField: 1},
	}).Err()
}

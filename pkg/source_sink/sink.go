package source_sink

import (
	"bufio"
	"context"
	"io"
	"iter"

	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/stats"
	"syncmerge-stream/pkg/utils/syncutils"

	"github.com/rs/zerolog/log"
)

type Sink[M any] interface {
	Produce(ctx context.Context, e commtypes.Entry[M]) error
	Flush(ctx context.Context) error
}

// encodeRecord returns the wire form of e. A non nil buffer has to be handed
// back to the buffer pool once the bytes are no longer used.
func encodeRecord[M any](e commtypes.Entry[M], source string, msgSerde commtypes.SerdeG[M],
	recordSerde commtypes.SerdeG[commtypes.EntryRecord],
) ([]byte, *[]byte, error) {
	rec, err := commtypes.ToEntryRecord(e, source, msgSerde)
	if err != nil {
		return nil, nil, err
	}
	bs, buf, err := recordSerde.Encode(rec)
	if err != nil {
		return nil, nil, err
	}
	if !recordSerde.UsedBufferPool() {
		buf = nil
	}
	return bs, buf, nil
}

// WriterSink writes one JSON encoded commtypes.EntryRecord per line.
type WriterSink[M any] struct {
	mu          syncutils.Mutex
	w           *bufio.Writer
	source      string
	msgSerde    commtypes.SerdeG[M]
	recordSerde commtypes.EntryRecordJSONSerdeG
	written     stats.Counter
}

var _ = Sink[int](&WriterSink[int]{})

func NewWriterSink[M any](w io.Writer, source string, msgSerde commtypes.SerdeG[M]) *WriterSink[M] {
	return &WriterSink[M]{
		w:        bufio.NewWriter(w),
		source:   source,
		msgSerde: msgSerde,
		written:  stats.NewCounter("written"),
	}
}

func (s *WriterSink[M]) Produce(ctx context.Context, e commtypes.Entry[M]) error {
	bs, _, err := encodeRecord[M](e, s.source, s.msgSerde, s.recordSerde)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(bs); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.written.Tick(1)
	return nil
}

func (s *WriterSink[M]) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *WriterSink[M]) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.GetCount()
}

// Drain writes every entry of the sequence to sink and flushes it. It stops
// at the first error or when ctx is done.
func Drain[M any](ctx context.Context, entries iter.Seq[commtypes.Entry[M]], sink Sink[M]) (uint64, error) {
	var n uint64
	var err error
	for e := range entries {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = sink.Produce(ctx, e); err != nil {
			break
		}
		n++
	}
	if err != nil {
		log.Error().Err(err).Uint64("written", n).Msg("drain stopped")
		return n, err
	}
	return n, sink.Flush(ctx)
}

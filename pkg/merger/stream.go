package merger

import (
	"context"
	"iter"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
)

// Stream is a lazy, single pass view over an engine. Iterating it takes
// entries until the end of stream or until ctx is done; Err reports why an
// iteration stopped early.
type Stream[M any] struct {
	engine *Engine[M]
	ctx    context.Context
	err    error
}

func (e *Engine[M]) Stream(ctx context.Context) *Stream[M] {
	return &Stream[M]{
		engine: e,
		ctx:    ctx,
	}
}

func (s *Stream[M]) All() iter.Seq[commtypes.Entry[M]] {
	return func(yield func(commtypes.Entry[M]) bool) {
		for {
			entry, err := s.engine.Take(s.ctx)
			if err != nil {
				if !common_errors.IsEndOfStreamError(err) {
					s.err = err
				}
				return
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// Err returns nil if the stream ended normally or is still being iterated.
func (s *Stream[M]) Err() error {
	return s.err
}

// Comparator is the order the stream yields entries in.
func (s *Stream[M]) Comparator() func(a, b commtypes.Entry[M]) int {
	return s.engine.Comparator()
}

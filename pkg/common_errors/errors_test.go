package common_errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestInterruptedMatchesBoth(t *testing.T) {
	err := Interrupted(context.Canceled)
	assert.True(t, IsInterruptedError(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEndOfStreamWrapped(t *testing.T) {
	err := xerrors.Errorf("take: %w", ErrEndOfStream)
	assert.True(t, IsEndOfStreamError(err))
	assert.False(t, IsStreamEmptyError(err))
	assert.True(t, IsStreamEmptyError(ErrStreamEmpty))
}

func TestStreamEmptyWrapped(t *testing.T) {
	err := xerrors.Errorf("emit from partition 3: %w", ErrStreamEmpty)
	assert.True(t, IsStreamEmptyError(err))
	assert.False(t, IsEndOfStreamError(err))
	assert.False(t, IsStreamEmptyError(nil))
}

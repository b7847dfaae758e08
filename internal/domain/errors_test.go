package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySourceError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, ClassifySourceError(nil, "fetch"))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := ClassifySourceError(fmt.Errorf("query: %w", context.DeadlineExceeded), "fetch %s", "orders")

		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "fetch orders")
	})

	t.Run("other errors become source unavailable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ClassifySourceError(cause, "fetch")

		var su *SourceUnavailableError
		require.ErrorAs(t, err, &su)
		assert.ErrorIs(t, err, cause)

		var te *TimeoutError
		assert.False(t, errors.As(err, &te))
	})

	t.Run("already classified passes through", func(t *testing.T) {
		orig := ErrTimeout(nil, "warehouse slow")
		assert.Same(t, orig, ClassifySourceError(orig, "fetch"))
	})
}

func TestPageRequest(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := PageRequest{}
		off, err := p.Offset()
		require.NoError(t, err)
		assert.Equal(t, 0, off)
		assert.Equal(t, DefaultMaxResults, p.Limit())
	})

	t.Run("clamps limit", func(t *testing.T) {
		assert.Equal(t, MaxMaxResults, PageRequest{MaxResults: 5000}.Limit())
	})

	t.Run("round trips token", func(t *testing.T) {
		tok := NextPageToken(0, 10, 25)
		require.NotEmpty(t, tok)
		off, err := PageRequest{PageToken: tok}.Offset()
		require.NoError(t, err)
		assert.Equal(t, 10, off)
	})

	t.Run("last page has no token", func(t *testing.T) {
		assert.Empty(t, NextPageToken(20, 10, 25))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := PageRequest{PageToken: "!!not-base64"}.Offset()
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

package correlation

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestIDDefaultsToUnset(t *testing.T) {
	assert.Equal(t, Unset, ID(context.Background()))
}

func TestWithID(t *testing.T) {
	ctx := WithID(context.Background(), "abc")
	assert.Equal(t, "abc", ID(ctx))

	// Inner values shadow outer ones.
	inner := WithID(ctx, "def")
	assert.Equal(t, "def", ID(inner))
	assert.Equal(t, "abc", ID(ctx))
}

func TestEmptyIDTreatedAsUnset(t *testing.T) {
	ctx := WithID(context.Background(), "")
	assert.Equal(t, Unset, ID(ctx))
}

func TestLoggerStampsCorrID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	log := Logger(WithID(context.Background(), "abc"), base)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"corr_id":"abc"`)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	external := NewExternalServiceError("gemini", "embed", errors.New("connection reset"))
	parse := &ParseError{What: "resume facts", Err: errors.New("unexpected end of JSON input")}

	assert.True(t, IsExternal(fmt.Errorf("scoring: %w", external)))
	assert.False(t, IsParse(external))
	assert.True(t, IsParse(fmt.Errorf("scoring: %w", parse)))
	assert.False(t, IsExternal(parse))
	assert.Equal(t, "gemini embed: connection reset", external.Error())
}

func TestNewExternalServiceErrorDoesNotDoubleWrap(t *testing.T) {
	inner := &ExternalServiceError{Service: "gemini", Op: "generate", Err: context.DeadlineExceeded}
	wrapped := NewExternalServiceError("ats", "score", fmt.Errorf("call: %w", inner))

	var got *ExternalServiceError
	require.ErrorAs(t, wrapped, &got)
	assert.Equal(t, "gemini", got.Service)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
}

func TestUnavailableBackend(t *testing.T) {
	backend := Unavailable{Reason: "gemini api key is not configured"}

	_, err := backend.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsExternal(err))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = backend.GenerateText(context.Background(), "instruction", "input")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = backend.GenerateFromDocument(context.Background(), "instruction", Document{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

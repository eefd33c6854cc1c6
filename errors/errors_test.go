package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestMarkMatchesSentinel(t *testing.T) {
	sentinel := New("sentinel")
	other := New("other")
	err := Mark(New("dial tcp: refused"), sentinel)

	assert.True(t, Is(err, sentinel))
	assert.False(t, Is(err, other))
	assert.Contains(t, err.Error(), "refused")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(New("boom")))

	err := WithHint(New("no microphone"), "check device permissions")
	require.NotNil(t, err)
	assert.Equal(t, "no microphone (check device permissions)", UserMessage(err))
}

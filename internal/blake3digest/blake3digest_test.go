package blake3digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfMatchesIncrementalWrite(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := Of(data)

	h := New()
	h.Write(data[:10])
	h.Write(data[10:])
	require.Equal(t, whole, h.Sum())
}

func TestOfEmpty(t *testing.T) {
	require.Len(t, Of(nil), HexLen)
}

func TestOfIsDeterministic(t *testing.T) {
	data := []byte("deterministic input")
	require.Equal(t, Of(data), Of(data))
}

func TestOfDiffersOnDifferentInput(t *testing.T) {
	require.NotEqual(t, Of([]byte("a")), Of([]byte("b")))
}

func TestValid(t *testing.T) {
	require.True(t, Valid(Of([]byte("anything"))))
	require.False(t, Valid("too-short"))
	require.False(t, Valid(""))

	upper := make([]byte, HexLen)
	for i := range upper {
		upper[i] = 'A'
	}
	require.False(t, Valid(string(upper)))
}

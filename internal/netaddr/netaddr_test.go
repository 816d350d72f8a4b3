package netaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	require.Equal(t, "0.0.0.0:8080", Bind(8080))
}

func TestDisplayOmitsDefaultPort(t *testing.T) {
	require.Equal(t, "http://127.0.0.1", Display(80, 80, false))
	require.Equal(t, "https://127.0.0.1", Display(443, 443, true))
}

func TestDisplayIncludesNonDefaultPort(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:8080", Display(8080, 80, false))
}

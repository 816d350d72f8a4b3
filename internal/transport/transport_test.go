package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRangeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-skip", "4")
		w.Header().Set("x-take", "3")
		w.Header().Set("content-type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	skip, take, body, err := c.GetRange(context.Background(), "default", "foo.bin", 4, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(4), skip)
	require.Equal(t, uint64(3), take)
	require.Equal(t, []byte("abc"), body)
}

func TestGetRangeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-body-is-error", "yes")
		w.Header().Set("content-type", "text/plain;charset=utf-8")
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte("file not found"))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, _, _, err := c.GetRange(context.Background(), "default", "missing.bin", 0, 0)
	require.ErrorIs(t, err, ErrServer)
	require.Contains(t, err.Error(), "file not found")
}

func TestGetRangeUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, _, _, err := c.GetRange(context.Background(), "default", "foo.bin", 0, 0)
	require.ErrorIs(t, err, ErrBadStatus)
}

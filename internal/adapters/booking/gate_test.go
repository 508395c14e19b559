package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate_IsBookingWindowValid(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		valid := r.URL.Query().Get("caller") == "alice" && r.URL.Query().Get("receiver") == "dr"
		w.Header().Set("Content-Type", "application/json")
		if valid {
			_, _ = w.Write([]byte(`{"valid":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid":false}`))
	}))
	defer srv.Close()

	g, err := NewGate(srv.URL+"/booking/check", time.Second)
	req.NoError(err)

	ok, err := g.IsBookingWindowValid(context.Background(), "alice", "dr")
	req.NoError(err)
	req.True(ok)

	ok, err = g.IsBookingWindowValid(context.Background(), "mallory", "dr")
	req.NoError(err)
	req.False(ok)
}

func TestGate_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g, err := NewGate(srv.URL, time.Second)
	require.NoError(t, err)
	ok, err := g.IsBookingWindowValid(context.Background(), "a", "b")
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewGate_InvalidURL(t *testing.T) {
	_, err := NewGate("not a url", time.Second)
	require.Error(t, err)
}

package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	mux := http.NewServeMux()
	server := NewServer(8080, mux, nil)

	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.srv.Addr)
	assert.Equal(t, 30*time.Second, server.srv.ReadTimeout)
	assert.NotNil(t, server.Handler())
}

func TestServer_StopBeforeStart(t *testing.T) {
	server := NewServer(0, http.NewServeMux(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServer_StartAndStop(t *testing.T) {
	// Port 0 binds an ephemeral port so parallel test runs cannot collide.
	server := NewServer(0, http.NewServeMux(), nil)

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after Stop")
	}
}

package intake

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	srv := NewServer(ServerConfig{Address: "127.0.0.1:0", Handler: f.handler})

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerRunning)

	url := "http://" + srv.Addr().String() + "/"
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"type":"audio","data":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, err = http.Post(url, "application/json", strings.NewReader(`{}`))
	assert.Error(t, err, "listener closed after Stop")
}

func TestServerRequiresHandler(t *testing.T) {
	srv := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	assert.Error(t, srv.Start(context.Background()))
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}

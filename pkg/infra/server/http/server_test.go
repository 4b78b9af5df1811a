package http

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sentinel-search/pkg/options/server/http"
)

func TestServer_StartServeStop(t *testing.T) {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"

	srv := NewServer(opts)
	srv.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, srv.Start(context.Background()))
	base := "http://" + srv.Addr().String()

	resp, err := http.Get(base + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(base + "/nope")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "Resource not found")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}

func TestServer_StartBindError(t *testing.T) {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"
	first := NewServer(opts)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	opts2 := options.NewOptions()
	opts2.Addr = first.Addr().String()
	assert.Error(t, NewServer(opts2).Start(context.Background()))
	assert.Equal(t, "http[gin]", first.Name())
}

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(3), WithBackoff(time.Millisecond))

	var out struct {
		OK bool `json:"ok"`
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	require.NoError(t, c.DoJSON(req, &out))

	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(1), WithBackoff(time.Millisecond))
	_, err := c.Get(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "status 502")
}

func TestClientPostJSONReplaysBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, decodeBody(r, &in))
		assert.Equal(t, "mistral:7b", in["model"])
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(2), WithBackoff(time.Millisecond))
	var out struct {
		Response string `json:"response"`
	}
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]string{"model": "mistral:7b"}, &out))
	assert.Equal(t, "hi", out.Response)
}

func TestClientHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sentinel-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "text/html", r.Header.Get("Accept"))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("sentinel-test"))
	resp, err := c.Get(context.Background(), srv.URL, map[string]string{"Accept": "text/html"})
	require.NoError(t, err)
	_ = resp.Body.Close()
}

func TestClientClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(3), WithBackoff(time.Millisecond))
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	err := c.DoJSON(req, nil)

	assert.ErrorContains(t, err, "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

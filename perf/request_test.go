package perf_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/vuload/perf"
)

// closedServerURL returns the URL of a server that is no longer listening.
func closedServerURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

func TestHTTPExecutor_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Token", r.Header.Get("X-Token"))
		w.Header().Set("X-Agent", r.UserAgent())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("echo:" + string(body)))
	}))
	defer server.Close()

	exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
	defer exec.CloseIdleConnections()

	resp, err := exec.Execute(context.Background(), &perf.RequestDescriptor{
		Method:  "post",
		URL:     server.URL,
		Headers: map[string]string{"X-Token": "abc"},
		Body:    "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "POST", resp.Headers.Get("X-Method"))
	assert.Equal(t, "abc", resp.Headers.Get("X-Token"))
	assert.Equal(t, "vuload/1.0", resp.Headers.Get("X-Agent"))
	assert.Equal(t, "echo:hello", string(resp.Body))
	assert.False(t, resp.Truncated)
	assert.Equal(t, int64(len("echo:hello")), resp.BytesReceived)
	assert.True(t, resp.Duration > 0)
}

func TestHTTPExecutor_DefaultMethodIsGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Method))
	}))
	defer server.Close()

	exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
	resp, err := exec.Execute(context.Background(), &perf.RequestDescriptor{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "GET", string(resp.Body))
}

func TestHTTPExecutor_TruncatesLargeBody(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	cfg := perf.DefaultHTTPClientConfig()
	cfg.MaxBodyBytes = 100
	exec := perf.NewHTTPExecutor(cfg)

	resp, err := exec.Execute(context.Background(), &perf.RequestDescriptor{URL: server.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
	assert.True(t, resp.Truncated)
	assert.Equal(t, int64(4096), resp.BytesReceived)
}

func TestHTTPExecutor_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
		_, err := exec.Execute(context.Background(), &perf.RequestDescriptor{URL: closedServerURL(t)})

		var te *perf.TransportError
		require.True(t, errors.As(err, &te), "expected *TransportError, got %T", err)
		assert.Equal(t, perf.ErrKindRefused, te.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
		_, err := exec.Execute(context.Background(), &perf.RequestDescriptor{
			URL:     server.URL,
			Timeout: 50 * time.Millisecond,
		})

		var te *perf.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, perf.ErrKindTimeout, te.Kind)
	})

	t.Run("cancelled", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
		start := time.Now()
		_, err := exec.Execute(ctx, &perf.RequestDescriptor{URL: server.URL})

		var te *perf.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, perf.ErrKindAborted, te.Kind)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("invalid url", func(t *testing.T) {
		exec := perf.NewHTTPExecutor(perf.DefaultHTTPClientConfig())
		_, err := exec.Execute(context.Background(), &perf.RequestDescriptor{URL: "http://[::1"})

		var te *perf.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, perf.ErrKindOther, te.Kind)
	})
}

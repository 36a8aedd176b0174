package target

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fetchID(url string) (IDResponse, int, error) {
	var body IDResponse
	resp, err := http.Get(url)
	if err != nil {
		return body, 0, err
	}
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&body)
	return body, resp.StatusCode, err
}

func getID(t *testing.T, url string) IDResponse {
	t.Helper()
	body, status, err := fetchID(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	return body
}

func TestGetID(t *testing.T) {
	s := NewServer(Config{}, zaptest.NewLogger(t))
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	first := getID(t, ts.URL+"/id?biztag=test")
	assert.Equal(t, RetOK, first.Ret)
	assert.Equal(t, MsgOK, first.Msg)
	assert.Equal(t, "test", first.BizTag)
	assert.Equal(t, int64(1), first.ID)

	second := getID(t, ts.URL+"/id?biztag=test")
	assert.Equal(t, int64(2), second.ID)

	other := getID(t, ts.URL+"/id?biztag=order")
	assert.Equal(t, int64(1), other.ID, "ids are counted per biz tag")

	assert.Equal(t, int64(3), s.Served())
}

func TestGetID_MissingBizTag(t *testing.T) {
	ts := httptest.NewServer(NewServer(Config{}, nil).Routes())
	defer ts.Close()

	body := getID(t, ts.URL+"/id")
	assert.Equal(t, RetBadBizTag, body.Ret)
	assert.Equal(t, MsgBadBizTag, body.Msg)
}

func TestGetID_UniqueUnderConcurrency(t *testing.T) {
	s := NewServer(Config{}, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	const workers, perWorker = 8, 25
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				body, _, err := fetchID(ts.URL + "/id?biztag=test")
				if assert.NoError(t, err) {
					ids <- body.ID
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestGetID_Latency(t *testing.T) {
	ts := httptest.NewServer(NewServer(Config{Latency: 30 * time.Millisecond}, nil).Routes())
	defer ts.Close()

	start := time.Now()
	getID(t, ts.URL+"/id?biztag=test")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewServer(Config{Addr: addr}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// concurrencyServer records the highest number of handlers running at once.
type concurrencyServer struct {
	current int64
	peak    int64
	release chan struct{}
}

func (s *concurrencyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt64(&s.current, 1)
	for {
		p := atomic.LoadInt64(&s.peak)
		if n <= p || atomic.CompareAndSwapInt64(&s.peak, p, n) {
			break
		}
	}
	<-s.release
	atomic.AddInt64(&s.current, -1)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func TestClient_NeverExceedsCap(t *testing.T) {
	srv := &concurrencyServer{release: make(chan struct{})}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := NewClient(5*time.Second, WithMaxInFlight(2), WithName("test-cap"))
	require.Equal(t, 2, client.Cap())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
			resp, err := client.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
	}

	// let the first two requests reach the server, then drain everything
	require.Eventually(t, func() bool { return atomic.LoadInt64(&srv.current) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, client.InFlight())
	go func() {
		for i := 0; i < 6; i++ {
			srv.release <- struct{}{}
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&srv.peak), int64(2))
	assert.Equal(t, 0, client.InFlight())
}

func TestClient_ContextCancelledWhileWaiting(t *testing.T) {
	srv := &concurrencyServer{release: make(chan struct{})}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer close(srv.release)

	client := NewClient(5*time.Second, WithMaxInFlight(1), WithName("test-cancel"))

	// occupy the only slot
	go func() {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	}()
	require.Eventually(t, func() bool { return client.InFlight() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.DoWithContext(ctx, req)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), atomic.LoadInt64(&srv.current), "waiting request must not be dispatched")
}

func TestClient_ReleasesSlotOnTransportError(t *testing.T) {
	client := NewClient(time.Second, WithMaxInFlight(1), WithName("test-error"))

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
		_, err := client.Do(req)
		assert.Error(t, err)
	}
	assert.Equal(t, 0, client.InFlight())
}

func TestClient_DoubleCloseReleasesOnce(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(time.Second, WithMaxInFlight(2), WithName("test-close"))
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)

	resp.Body.Close()
	resp.Body.Close()
	assert.Equal(t, 0, client.InFlight())
	assert.Len(t, client.slots, 0)
}

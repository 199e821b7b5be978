package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"uptime-status/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_AnyResponseIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		assert.Equal(t, "yes", r.Header.Get("X-Probe"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(config.ProbeConfig{}, nil)
	res := p.CheckHTTP(context.Background(), ProbeTarget{ID: 1, URL: srv.URL, Headers: map[string]string{"X-Probe": "yes"}})

	assert.True(t, res.Success)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Empty(t, res.Error)
	assert.GreaterOrEqual(t, res.ResponseTime, int64(0))
	assert.False(t, res.Timestamp.IsZero())
}

func TestProber_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	p := NewProber(config.ProbeConfig{}, nil)
	res := p.CheckHTTP(context.Background(), ProbeTarget{ID: 1, URL: srv.URL, Timeout: 50})

	assert.False(t, res.Success)
	assert.Equal(t, int64(50), res.ResponseTime)
	assert.Equal(t, "Timeout after 50ms", res.Error)
}

func TestProber_TargetTimeoutCappedByConfig(t *testing.T) {
	p := NewProber(config.ProbeConfig{Timeout: 2 * time.Second}, nil)

	assert.Equal(t, 500*time.Millisecond, p.targetTimeout(ProbeTarget{Timeout: 500}))
	assert.Equal(t, 2*time.Second, p.targetTimeout(ProbeTarget{Timeout: 3_600_000}))
	assert.Equal(t, 2*time.Second, p.targetTimeout(ProbeTarget{Timeout: 0}))
	assert.Equal(t, 2*time.Second, p.targetTimeout(ProbeTarget{Timeout: -1}))
}

func TestProber_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber(config.ProbeConfig{Timeout: time.Second}, nil)
	res := p.CheckHTTP(context.Background(), ProbeTarget{ID: 1, URL: url})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.StatusCode)
}

func TestProber_BadURL(t *testing.T) {
	p := NewProber(config.ProbeConfig{}, nil)
	res := p.CheckHTTP(context.Background(), ProbeTarget{ID: 1, URL: "://nope"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Create request failed")
}

func TestProber_CheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(config.ProbeConfig{}, nil)
	results := p.CheckAll(context.Background(), []ProbeTarget{
		{ID: 1, URL: srv.URL},
		{ID: 2, URL: srv.URL, Method: "head"},
		{ID: 0, URL: srv.URL},
		{ID: 3},
	})

	require.Len(t, results, 2)
	assert.True(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, http.StatusOK, results[2].StatusCode)
}

func TestSimplifyError(t *testing.T) {
	assert.Equal(t, "Connection Refused", simplifyError(errString("dial tcp: connect: connection refused")))
	assert.Equal(t, "DNS Resolution Failed", simplifyError(errString("lookup x: no such host")))
	long := errString(string(make([]byte, 100)))
	assert.Len(t, simplifyError(long), 80)
}

type errString string

func (e errString) Error() string { return string(e) }

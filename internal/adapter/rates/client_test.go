package rates_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldstream/goldstream/internal/adapter/rates"
	"github.com/goldstream/goldstream/internal/domain"
)

func TestClient_Rate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR", r.URL.Query().Get("base"))
		assert.Equal(t, "RUB", r.URL.Query().Get("symbols"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"RUB":98.42}}`))
	}))
	defer srv.Close()

	c := rates.New(srv.URL, "k", time.Second)
	rate, err := c.Rate(context.Background(), "RUB")
	require.NoError(t, err)
	assert.InDelta(t, 98.42, rate, 0.001)
}

func TestClient_MissingCounter(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer srv.Close()

	c := rates.New(srv.URL, "", time.Second)
	_, err := c.Rate(context.Background(), "USD")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := rates.New(srv.URL, "", time.Second)
	_, err := c.Rate(context.Background(), "USD")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesUpstreamError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rates":{"USD":1.08}}`))
	}))
	defer srv.Close()

	c := rates.New(srv.URL, "", time.Second)
	rate, err := c.Rate(context.Background(), "USD")
	require.NoError(t, err)
	assert.InDelta(t, 1.08, rate, 0.001)
	assert.Equal(t, int32(2), calls.Load())
}

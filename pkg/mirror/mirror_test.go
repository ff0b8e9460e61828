package mirror

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostDeliversJSON(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 4, zerolog.Nop())
	c.Post(map[string]string{"sender_id": "U1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &got))
	assert.Equal(t, "U1", got["sender_id"])
}

func TestPostSwallowsEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 4, zerolog.Nop())

	assert.NotPanics(t, func() {
		c.Post(map[string]string{"k": "v"})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, c.Flush(ctx))
	})
}

func TestPostWithoutURLIsNoop(t *testing.T) {
	c := New("", 4, zerolog.Nop())
	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() { c.Post("anything") })
}

func TestPostDropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	received := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received++
		mu.Unlock()
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 1, zerolog.Nop())

	c.Post("first")
	// Wait for the first post to occupy the only slot.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 1
	}, time.Second, 5*time.Millisecond)

	// Saturated: these are dropped, not queued.
	c.Post("second")
	c.Post("third")

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, received)
}

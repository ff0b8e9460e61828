package nlu

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

	"github.com/user/convobridge/pkg/mirror"
	"github.com/user/convobridge/pkg/session"
)

const demoResponse = `{
	"result": {
		"fulfillment": {
			"messages": [
				{"type": 0, "speech": "Hello ?"},
				{"type": 0, "speech": "How can I help?"}
			]
		}
	}
}`

type fakeRequester struct {
	mu    sync.Mutex
	calls []Request
	raw   string
	err   error
}

func (f *fakeRequester) Query(_ context.Context, req Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

func newTestAdapter(t *testing.T, req *fakeRequester, m *mirror.Client) (*Adapter, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	return NewAdapter(req, store, m, time.Second, zerolog.Nop()), store
}

func TestSendTextSuccessKeepsFragmentOrder(t *testing.T) {
	req := &fakeRequester{raw: demoResponse}
	adapter, store := newTestAdapter(t, req, nil)

	ex := adapter.SendText(context.Background(), "hello", "U1")

	assert.Equal(t, OutcomeSuccess, ex.Outcome)
	assert.NotEmpty(t, ex.ID)
	require.Len(t, ex.Fragments, 2)
	assert.Equal(t, "Hello ?", ex.Fragments[0].Speech)
	assert.Equal(t, "How can I help?", ex.Fragments[1].Speech)
	assert.JSONEq(t, demoResponse, string(ex.Raw))

	// The request carried the sender's stable session.
	sess, err := store.Get(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, req.calls, 1)
	assert.Equal(t, sess.SessionID, req.calls[0].SessionID)
	assert.Equal(t, "hello", req.calls[0].Text)
	assert.Empty(t, req.calls[0].EventName)
}

func TestSendEventBuildsEventRequest(t *testing.T) {
	req := &fakeRequester{raw: demoResponse}
	adapter, _ := newTestAdapter(t, req, nil)

	ex := adapter.SendEvent(context.Background(), "FACEBOOK_WELCOME", "U1")

	assert.Equal(t, OutcomeSuccess, ex.Outcome)
	require.Len(t, req.calls, 1)
	assert.Equal(t, "FACEBOOK_WELCOME", req.calls[0].EventName)
	assert.Empty(t, req.calls[0].Text)
}

func TestRichFormattedReplyIsEmpty(t *testing.T) {
	raw := `{
		"result": {
			"fulfillment": {
				"data": {"facebook": {"attachment": {"type": "template"}}},
				"messages": [{"type": 0, "speech": "ignored"}]
			}
		}
	}`
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: raw}, nil)

	ex := adapter.SendText(context.Background(), "hello", "U1")

	assert.Equal(t, OutcomeEmpty, ex.Outcome)
	assert.Empty(t, ex.Fragments)
}

func TestReplyWithoutResultIsEmpty(t *testing.T) {
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: `{"status": {"code": 200}}`}, nil)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	assert.Equal(t, OutcomeEmpty, ex.Outcome)
}

func TestReplyWithEmptyMessageListIsEmpty(t *testing.T) {
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: `{"result": {"fulfillment": {"messages": []}}}`}, nil)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	assert.Equal(t, OutcomeEmpty, ex.Outcome)
}

func TestBackendErrorIsFailure(t *testing.T) {
	backendErr := &BackendError{Err: assert.AnError}
	adapter, _ := newTestAdapter(t, &fakeRequester{err: backendErr}, nil)

	ex := adapter.SendText(context.Background(), "hello", "U3")

	assert.Equal(t, OutcomeFailure, ex.Outcome)
	assert.True(t, IsBackendError(ex.Err))
}

type failingStore struct {
	session.Store
}

func (failingStore) Get(context.Context, string) (session.Session, error) {
	return session.Session{}, &session.StoreError{Op: "get", Err: assert.AnError}
}

func TestStoreFailureIsFailure(t *testing.T) {
	adapter := NewAdapter(&fakeRequester{raw: demoResponse}, failingStore{}, nil, time.Second, zerolog.Nop())

	ex := adapter.SendText(context.Background(), "hello", "U1")

	assert.Equal(t, OutcomeFailure, ex.Outcome)
	assert.True(t, session.IsStoreError(ex.Err))
}

func TestSuccessfulResponseIsMirrored(t *testing.T) {
	var mu sync.Mutex
	var mirrored []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		mirrored = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := mirror.New(srv.URL, 2, zerolog.Nop())
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: demoResponse}, m)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	require.Equal(t, OutcomeSuccess, ex.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, mirrored)
	assert.Contains(t, string(mirrored), `"sender_id":"U1"`)
	assert.Contains(t, string(mirrored), `"Hello ?"`)
}

func TestEmptyOutcomeIsStillMirrored(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := mirror.New(srv.URL, 2, zerolog.Nop())
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: `{"status": {}}`}, m)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	require.Equal(t, OutcomeEmpty, ex.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestRichFormattedReplyIsStillMirrored(t *testing.T) {
	raw := `{
		"result": {
			"fulfillment": {
				"data": {"facebook": {"attachment": {"type": "template"}}},
				"messages": [{"type": 0, "speech": "ignored"}]
			}
		}
	}`

	var mu sync.Mutex
	var mirrored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		mirrored = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := mirror.New(srv.URL, 2, zerolog.Nop())
	adapter, _ := newTestAdapter(t, &fakeRequester{raw: raw}, m)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	require.Equal(t, OutcomeEmpty, ex.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, mirrored)
	assert.Contains(t, string(mirrored), `"sender_id":"U1"`)
	assert.Contains(t, string(mirrored), `"template"`)
}

func TestBackendErrorIsNotMirrored(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := mirror.New(srv.URL, 2, zerolog.Nop())
	adapter, _ := newTestAdapter(t, &fakeRequester{err: &BackendError{Status: 500}}, m)

	ex := adapter.SendText(context.Background(), "hello", "U1")
	require.Equal(t, OutcomeFailure, ex.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))
	assert.False(t, hit)
}

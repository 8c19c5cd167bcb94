package metrika

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

func newTestClient(serverURL string) *Client {
	cfg := DefaultClientConfig("12345", "remedia.health")
	cfg.BaseURL = serverURL
	return NewClient(cfg)
}

func TestReachGoalSendsHit(t *testing.T) {
	var gotPath, gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ReachGoal(context.Background(), "visitor-1", "demo_chat_completed", map[string]interface{}{
		"source": "landing",
	})

	require.NoError(t, err)
	assert.Equal(t, "/watch/12345", gotPath)
	assert.Contains(t, gotQuery, "goal%3A%2F%2Fremedia.health%2Fdemo_chat_completed")
	assert.Contains(t, gotQuery, "uid=visitor-1")
	assert.Contains(t, gotQuery, "site-info")
}

func TestReachGoalRetriesServerErrors(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ReachGoal(context.Background(), "visitor-1", "waitlist_joined", nil)

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestReachGoalPermanentOnClientError(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ReachGoal(context.Background(), "visitor-1", "waitlist_joined", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrMetrikaAPIFailed)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReachGoalDisabledWithoutCounter(t *testing.T) {
	client := NewClient(ClientConfig{})
	assert.False(t, client.Enabled())
	assert.NoError(t, client.ReachGoal(context.Background(), "v", "goal", nil))
}

func TestReachGoalRejectsEmptyGoal(t *testing.T) {
	client := newTestClient("http://unused")
	assert.Error(t, client.ReachGoal(context.Background(), "v", "", nil))
}

package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(endpoint string) *Client {
	c := NewClient(endpoint, zerolog.Nop())
	c.pollInterval = 5 * time.Millisecond
	return c
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestSubmitPostsBatch(t *testing.T) {
	var got submitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/submit", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(Receipt{ID: got.ID, Status: StatusPending})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	calls := []Call{{To: "0xvault", Data: json.RawMessage(`{"op":"withdraw"}`)}}
	receipt, err := c.Submit(context.Background(), calls)
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, got.ID, receipt.ID)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.Len(t, got.Calls, 1)
	assert.Equal(t, "0xvault", got.Calls[0].To)
	assert.Equal(t, 2.0, got.GasHeadroom)
}

func TestSubmitFillsMissingReceiptID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Receipt{Status: StatusPending})
	}))
	defer srv.Close()

	receipt, err := testClient(srv.URL).Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID, "client-generated id survives a channel that omits it")
}

func TestSubmitErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := testClient(srv.URL).Submit(context.Background(), nil)
		assert.ErrorContains(t, err, "503")
	})

	t.Run("malformed receipt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()
		_, err := testClient(srv.URL).Submit(context.Background(), nil)
		assert.ErrorContains(t, err, "malformed receipt")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := testClient("http://127.0.0.1:1").Submit(context.Background(), nil)
		assert.ErrorContains(t, err, "unreachable")
	})
}

func TestAwaitPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/receipts/"))
		id := strings.TrimPrefix(r.URL.Path, "/receipts/")
		status := StatusPending
		if polls.Add(1) >= 3 {
			status = StatusConfirmed
		}
		json.NewEncoder(w).Encode(Receipt{ID: id, Status: status})
	}))
	defer srv.Close()

	receipt, err := testClient(srv.URL).Await(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", receipt.ID)
	assert.Equal(t, StatusConfirmed, receipt.Status)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestAwaitReturnsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Receipt{ID: "batch-2", Status: StatusRejected, Detail: "reverted"})
	}))
	defer srv.Close()

	receipt, err := testClient(srv.URL).Await(context.Background(), "batch-2")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, receipt.Status)
	assert.Equal(t, "reverted", receipt.Detail)
}

func TestAwaitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Receipt{Status: StatusPending})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := testClient(srv.URL).Await(ctx, "batch-3")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitSurvivesTransientQueryFailures(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Receipt{ID: "batch-4", Status: StatusConfirmed})
	}))
	defer srv.Close()

	receipt, err := testClient(srv.URL).Await(context.Background(), "batch-4")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, receipt.Status)
}

func TestNullSubmitter(t *testing.T) {
	var n Null
	receipt, err := n.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, receipt.Status)
	assert.NotEmpty(t, receipt.ID)

	receipt, err = n.Await(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, receipt.Status)
	assert.Equal(t, "any", receipt.ID)
}

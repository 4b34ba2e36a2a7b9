package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func apiFail(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

func TestGetDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		ok(w, http.StatusOK, []map[string]any{{"account": map[string]any{"id": "a1", "number": "MVN-001"}, "equity": "5000"}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok-123"))
	ovs, err := c.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, ovs, 1)
	assert.Equal(t, "a1", ovs[0].Account.ID)
	assert.Equal(t, "5000", ovs[0].Equity.String())
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiFail(w, http.StatusNotFound, "NOT_FOUND", "account a9 not found")
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Account(context.Background(), "a9")
	require.Error(t, err)

	assert.True(t, IsNotFound(err))
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.StatusCode)
	assert.Equal(t, "account a9 not found", ae.Message)
}

func TestGetRetriesOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			apiFail(w, http.StatusServiceUnavailable, "DB_CONNECTION_ERROR", "warming up")
			return
		}
		ok(w, http.StatusOK, []Template{{Name: "maven"}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(2), WithBackoff(time.Millisecond))
	templates, err := c.Templates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, templates, 1)
}

func TestGetGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiFail(w, http.StatusBadGateway, "BAD_GATEWAY", "upstream down")
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(2), WithBackoff(time.Millisecond))
	_, err := c.Templates(context.Background())
	require.Error(t, err)
	// 1 initial + 2 retries; the final response is decoded, not retried.
	assert.Equal(t, int32(3), calls.Load())
}

func TestNonIdempotentPostNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiFail(w, http.StatusServiceUnavailable, "DB_CONNECTION_ERROR", "db down")
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(2), WithBackoff(time.Millisecond))
	_, err := c.CreateAccount(context.Background(), CreateAccountParams{Number: "X", Type: "live"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "non-idempotent POST must not be retried")
}

func TestIdempotentPostRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if calls.Add(1) < 2 {
			apiFail(w, http.StatusTooManyRequests, "RATE_LIMITED", "slow down")
			return
		}
		ok(w, http.StatusOK, Account{ID: "a1", Status: "active"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(2), WithBackoff(time.Millisecond))
	a, err := c.Reset(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "active", a.Status)
}

func TestContextCancelStopsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiFail(w, http.StatusServiceUnavailable, "DB_CONNECTION_ERROR", "db down")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, WithRetries(5), WithBackoff(time.Hour))
	_, err := c.Templates(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			ok(w, http.StatusOK, map[string]string{"token": "fresh-token", "email": "t@example.com"})
		default:
			assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
			ok(w, http.StatusOK, []Overview{})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.Login(context.Background(), "t@example.com", "pw-12345678"))
	_, err := c.Accounts(context.Background())
	require.NoError(t, err)
}

func TestImportUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "a1", r.FormValue("account"))
		assert.Equal(t, "mt5report", r.FormValue("platform"))
		assert.JSONEq(t, `{"pnl": 8}`, r.FormValue("mapping"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "jan.csv", hdr.Filename)

		ok(w, http.StatusCreated, ImportBatch{ID: "b1", RowsImported: 2})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	batch, err := c.Import(context.Background(), "a1", "mt5report", "jan.csv",
		strings.NewReader("header\nrow\n"), map[string]int{"pnl": 8})
	require.NoError(t, err)
	assert.Equal(t, "b1", batch.ID)
	assert.Equal(t, 2, batch.RowsImported)
}

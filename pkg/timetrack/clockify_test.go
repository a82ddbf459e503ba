package timetrack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newClockifyServer(t *testing.T, userBody, workspacesBody string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		switch r.URL.Path {
		case "/user":
			w.Write([]byte(userBody))
		case "/workspaces":
			w.Write([]byte(workspacesBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier_AcceptsValidKey(t *testing.T) {
	srv := newClockifyServer(t, `{"id":"user-1"}`, `[{"id":"ws-1"}]`, http.StatusOK)
	v := NewVerifierWithBase(srv.URL)

	require.NoError(t, v.Verify(context.Background(), "key"))
}

func TestVerifier_RejectsEmptyKey(t *testing.T) {
	v := NewVerifier()
	require.Error(t, v.Verify(context.Background(), ""))
}

func TestVerifier_RejectsUnauthorizedKey(t *testing.T) {
	srv := newClockifyServer(t, `{}`, `[]`, http.StatusUnauthorized)
	v := NewVerifierWithBase(srv.URL)

	err := v.Verify(context.Background(), "bad")
	require.Error(t, err)
	require.Contains(t, err.Error(), "verify user")
}

func TestVerifier_RejectsKeyWithoutWorkspaces(t *testing.T) {
	srv := newClockifyServer(t, `{"id":"user-1"}`, `[]`, http.StatusOK)
	v := NewVerifierWithBase(srv.URL)

	err := v.Verify(context.Background(), "key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "workspaces")
}

func TestVerifier_RejectsEmptyUserID(t *testing.T) {
	srv := newClockifyServer(t, `{}`, `[{"id":"ws-1"}]`, http.StatusOK)
	v := NewVerifierWithBase(srv.URL)

	require.Error(t, v.Verify(context.Background(), "key"))
}

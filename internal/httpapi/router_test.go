package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/entity"
	"tasksync/internal/session"
)

type syncerFunc func(ctx context.Context) (entity.ChangeSet, error)

func (f syncerFunc) Sync(ctx context.Context) (entity.ChangeSet, error) { return f(ctx) }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPostSync(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"missing credentials", session.ErrMissingCredentials, http.StatusPreconditionFailed},
		{"connection", errors.Wrap(session.ErrConnectionFailed, "dial"), http.StatusBadGateway},
		{"probe", errors.Wrap(session.ErrCalendarProbeFailed, "503"), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			syncer := syncerFunc(func(context.Context) (entity.ChangeSet, error) {
				return entity.ChangeSet{ListsToPurge: []string{"L1"}}, tc.err
			})
			rec := httptest.NewRecorder()
			NewRouter(syncer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

			require.Equal(t, tc.status, rec.Code)
			var resp syncResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.RequestID)
			assert.Equal(t, []string{"L1"}, resp.Changes.ListsToPurge)
			if tc.err != nil {
				assert.Equal(t, tc.err.Error(), resp.Error)
			} else {
				assert.Empty(t, resp.Error)
			}
		})
	}
}

func TestSyncOutlivesClientDisconnect(t *testing.T) {
	var runErr error
	syncer := syncerFunc(func(ctx context.Context) (entity.ChangeSet, error) {
		runErr = ctx.Err()
		return entity.ChangeSet{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	NewRouter(syncer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runErr)
}

func TestSyncRequiresPost(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewRouter(nil)) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

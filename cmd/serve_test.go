package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/internal/research"
	"github.com/sells-group/promo-scout/internal/store"
)

// gatedCompleter blocks every completion until release is closed, so tests
// can observe an in-progress run deterministically.
type gatedCompleter struct {
	release chan struct{}
}

func (g *gatedCompleter) Complete(context.Context, string) (string, error) {
	<-g.release
	return `{"casinos": []}`, nil
}

func newTestRouter(t *testing.T) (http.Handler, store.Store, *gatedCompleter) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	ai := &gatedCompleter{release: make(chan struct{})}
	engine := research.NewEngine(st, ai)
	return newRouter(engine), st, ai
}

func TestServeHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeStartRunAndPoll(t *testing.T) {
	router, _, ai := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/research/runs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.ID)

	// A second start while the first run is blocked conflicts.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/research/runs", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The in-progress run is visible to pollers.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/runs/"+accepted.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, accepted.ID, run.ID)
	assert.Equal(t, model.RunStatusInProgress, run.Status)

	close(ai.release)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/runs/"+accepted.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var run model.Run
		if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
			return false
		}
		return run.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeGetRunNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/runs/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestServeListRuns(t *testing.T) {
	router, st, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	_, err := st.CreateRun(context.Background())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

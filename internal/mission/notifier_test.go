package mission

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/internal/task"
	"fsl/mission-control/pkg/types"
)

func newTestNotifier(t *testing.T, analyzeURL string) (*Notifier, *task.Store) {
	t.Helper()
	hub := testHub(t)
	store := task.NewStore()
	locator := discovery.NewLocator(hub.URL, time.Second)
	notifier := NewNotifier(store, locator, analyzeURL, time.Second, NewMetrics())
	return notifier, store
}

func completedTask(id string) *types.Task {
	return &types.Task{
		TaskID:         id,
		Stage:          types.Completed(),
		WorkflowStages: types.DefaultStageSet(),
		DestroyedMines: []types.Mine{{ID: "m1", Status: "destroyed"}},
	}
}

func TestNotifierDeliversSnapshot(t *testing.T) {
	var calls atomic.Int32
	analyze := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		calls.Add(1)
		_, _ = w.Write([]byte(`{"verdict": "ok"}`))
	}))
	t.Cleanup(analyze.Close)

	notifier, store := newTestNotifier(t, analyze.URL)
	store.Register(completedTask("T1"))
	notifier.Start()

	notifier.Enqueue(completedTask("T1"))
	notifier.Stop()

	assert.EqualValues(t, 1, calls.Load())
	snapshot, err := store.Get("T1")
	require.NoError(t, err)
	require.Len(t, snapshot.ServiceCalls, 1)
	assert.Equal(t, ServiceAnalyzeTask, snapshot.ServiceCalls[0].ServiceName)
	assert.Equal(t, http.StatusOK, snapshot.ServiceCalls[0].StatusCode)
}

func TestNotifierRecordsFailure(t *testing.T) {
	analyze := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(analyze.Close)

	notifier, store := newTestNotifier(t, analyze.URL)
	store.Register(completedTask("T1"))
	notifier.Start()

	notifier.Enqueue(completedTask("T1"))
	notifier.Stop()

	snapshot, err := store.Get("T1")
	require.NoError(t, err)
	require.Len(t, snapshot.ServiceCalls, 1)
	assert.Equal(t, http.StatusBadGateway, snapshot.ServiceCalls[0].StatusCode)
	assert.Contains(t, snapshot.ServiceCalls[0].Error, "boom")
}

func TestNotifierSurvivesUnreachableService(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	notifier, store := newTestNotifier(t, dead.URL)
	store.Register(completedTask("T1"))
	notifier.Start()

	notifier.Enqueue(completedTask("T1"))
	notifier.Stop()

	snapshot, err := store.Get("T1")
	require.NoError(t, err)
	require.Len(t, snapshot.ServiceCalls, 1)
	assert.NotEmpty(t, snapshot.ServiceCalls[0].Error)
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	notifier, _ := newTestNotifier(t, "http://127.0.0.1:1")
	// 未启动 worker, 队列填满后 Enqueue 不得阻塞
	for i := 0; i < 200; i++ {
		notifier.Enqueue(completedTask("T1"))
	}
}

func TestMetricsObserveAndSummary(t *testing.T) {
	metrics := NewMetrics()
	metrics.Observe("planArea", 10*time.Millisecond, false)
	metrics.Observe("planArea", 30*time.Millisecond, false)
	metrics.Observe("planArea", 20*time.Millisecond, true)

	summary := metrics.Summary()
	require.Contains(t, summary, "planArea")
	stats := summary["planArea"]
	assert.EqualValues(t, 3, stats.Calls)
	assert.EqualValues(t, 1, stats.Errors)
	assert.InDelta(t, 30, stats.MaxMS, 1)
	assert.GreaterOrEqual(t, stats.P99MS, stats.P50MS)
}

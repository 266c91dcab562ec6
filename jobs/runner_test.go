package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/bookcatalog/config"
	"github.com/aluiziolira/bookcatalog/importer"
	"github.com/aluiziolira/bookcatalog/models"
)

var quietLogger = slog.New(slog.DiscardHandler)

func newTestRunner(t *testing.T) (*Runner, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewRunner(context.Background(), metrics, quietLogger), metrics
}

func waitRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

// blockingBody runs until release is closed.
func blockingBody(entered chan<- struct{}, release <-chan struct{}) Body {
	return func(context.Context) (map[string]int, error) {
		entered <- struct{}{}
		<-release
		return map[string]int{"saved": 1}, nil
	}
}

func TestTriggerIsSingleFlight(t *testing.T) {
	r, metrics := newTestRunner(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	slot := r.Register(KindScrape, blockingBody(entered, release), nil)

	const callers = 16
	outcomes := make(chan Outcome, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := slot.Trigger()
			assert.NoError(t, err)
			outcomes <- out
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for out := range outcomes {
		counts[out]++
	}
	assert.Equal(t, 1, counts[Started])
	assert.Equal(t, callers-1, counts[Busy])

	<-entered
	st := slot.Status()
	assert.True(t, st.Running)
	assert.True(t, st.Locked)
	assert.Nil(t, st.LastRun)

	close(release)
	waitRunner(t, r)

	st = slot.Status()
	assert.False(t, st.Running)
	assert.False(t, st.Locked)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, StatusSucceeded, st.LastRun.Status)
	assert.Equal(t, map[string]int{"saved": 1}, st.LastRun.Summary)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Triggered.WithLabelValues("scrape", "started")))
	assert.Equal(t, float64(callers-1), testutil.ToFloat64(metrics.Triggered.WithLabelValues("scrape", "busy")))

	// The same slot is idle again: the next trigger starts a new run.
	first := st.LastRun
	out, err := slot.Trigger()
	require.NoError(t, err)
	assert.Equal(t, Started, out)
	<-entered
	waitRunner(t, r)

	st = slot.Status()
	assert.False(t, st.Locked)
	require.NotNil(t, st.LastRun)
	assert.NotSame(t, first, st.LastRun)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Triggered.WithLabelValues("scrape", "started")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Completed.WithLabelValues("scrape", "succeeded")))
}

func TestSlotsAreIndependent(t *testing.T) {
	r, _ := newTestRunner(t)
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	r.Register(KindScrape, blockingBody(entered, release), nil)
	r.Register(KindImport, blockingBody(entered, release), nil)

	out, err := r.Trigger(KindScrape)
	require.NoError(t, err)
	assert.Equal(t, Started, out)
	out, err = r.Trigger(KindImport)
	require.NoError(t, err)
	assert.Equal(t, Started, out)

	<-entered
	<-entered
	close(release)
	waitRunner(t, r)
}

func TestFailedRunIsContainedAndRecorded(t *testing.T) {
	r, metrics := newTestRunner(t)
	r.Register(KindImport, func(context.Context) (map[string]int, error) {
		return nil, errors.New("error processing CSV line 4")
	}, nil)

	out, err := r.Trigger(KindImport)
	require.NoError(t, err)
	assert.Equal(t, Started, out)
	waitRunner(t, r)

	st, err := r.Status(KindImport)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.False(t, st.Locked)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, StatusFailed, st.LastRun.Status)
	assert.Contains(t, st.LastRun.Error, "CSV line 4")
	assert.False(t, st.LastRun.FinishedAt.Before(st.LastRun.StartedAt))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Completed.WithLabelValues("import", "failed")))
}

func TestPanickingRunReleasesLock(t *testing.T) {
	r, _ := newTestRunner(t)
	var calls atomic.Int32
	slot := r.Register(KindScrape, func(context.Context) (map[string]int, error) {
		calls.Add(1)
		panic("boom")
	}, nil)

	_, err := slot.Trigger()
	require.NoError(t, err)
	waitRunner(t, r)

	st := slot.Status()
	assert.False(t, st.Locked)
	require.NotNil(t, st.LastRun)
	assert.Contains(t, st.LastRun.Error, "boom")
	first := st.LastRun

	out, err := slot.Trigger()
	require.NoError(t, err)
	assert.Equal(t, Started, out)
	waitRunner(t, r)

	st = slot.Status()
	assert.False(t, st.Running)
	assert.False(t, st.Locked)
	require.NotNil(t, st.LastRun)
	assert.NotSame(t, first, st.LastRun)
	assert.Equal(t, StatusFailed, st.LastRun.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPreconditionRejects(t *testing.T) {
	r, _ := newTestRunner(t)
	called := false
	r.Register(KindImport, func(context.Context) (map[string]int, error) {
		called = true
		return nil, nil
	}, SourceExists(filepath.Join(t.TempDir(), "missing.csv")))

	out, err := r.Trigger(KindImport)
	assert.Equal(t, Rejected, out)
	assert.ErrorIs(t, err, ErrPrecondition)
	waitRunner(t, r)
	assert.False(t, called)
}

func TestUnknownKind(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Trigger(Kind("reindex"))
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = r.Status(Kind("reindex"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestWaitHonoursContext(t *testing.T) {
	r, _ := newTestRunner(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	r.Register(KindScrape, blockingBody(entered, release), nil)
	_, err := r.Trigger(KindScrape)
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)

	close(release)
	waitRunner(t, r)
}

type mockCrawler struct{ mock.Mock }

func (m *mockCrawler) RunToFile(ctx context.Context, out config.OutputConfig) (*models.ScrapeResult, error) {
	args := m.Called(ctx, out)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScrapeResult), args.Error(1)
}

type mockImporter struct{ mock.Mock }

func (m *mockImporter) ImportFromFile(ctx context.Context, path string) (importer.Result, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(importer.Result), args.Error(1)
}

func TestScrapeBodySummary(t *testing.T) {
	out := config.OutputConfig{File: "data/book_data.csv", Format: "csv"}
	c := new(mockCrawler)
	c.On("RunToFile", mock.Anything, out).Return(&models.ScrapeResult{PageCount: 2, URLCount: 5, SavedCount: 5, RequestCount: 8}, nil)

	summary, err := ScrapeBody(c, out)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pages": 2, "urls": 5, "saved": 5, "requests": 8}, summary)
	c.AssertExpectations(t)
}

func TestImportBodyEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,price,url\n"), 0o644))

	imp := new(mockImporter)
	imp.On("ImportFromFile", mock.Anything, path).Return(importer.Result{Inserted: 5, Skipped: 0}, nil)

	r, _ := newTestRunner(t)
	r.Register(KindImport, ImportBody(imp, path), SourceExists(path))

	out, err := r.Trigger(KindImport)
	require.NoError(t, err)
	assert.Equal(t, Started, out)
	waitRunner(t, r)

	st, _ := r.Status(KindImport)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, map[string]int{"inserted": 5, "skipped": 0}, st.LastRun.Summary)
	imp.AssertExpectations(t)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "started", Started.String())
	assert.Equal(t, "busy", Busy.String())
	assert.Equal(t, "rejected", Rejected.String())
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressharvest/internal/locator"
	"pressharvest/internal/store"
)

// fakeFetcher returns canned bodies or errors per URL and counts calls.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return []byte("<html>" + url + "</html>"), nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// immediateRetry keeps the 3-attempt budget but drops the waits so tests
// run fast.
type immediateRetry struct{}

func (immediateRetry) ShouldRetry(err error, attempt int) bool {
	return err != nil && attempt < 3 && !errors.Is(err, context.Canceled)
}

func (immediateRetry) Backoff(int) time.Duration { return 0 }

func testRecords(n int) []locator.Record {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key%d", i)
	}
	return locator.Build("https://example.com", keys)
}

func newTestOrchestrator(t *testing.T, fetcher Fetcher, cfg Config) (*Orchestrator, *store.ArtifactStore, *store.CheckpointFile) {
	t.Helper()
	dir := t.TempDir()
	artifacts, err := store.NewArtifactStore(dir)
	require.NoError(t, err)
	checkpoint := store.NewCheckpointFile(dir)
	return NewOrchestrator(fetcher, immediateRetry{}, artifacts, checkpoint, cfg, nil), artifacts, checkpoint
}

func TestRunBatchFetchesWindow(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, checkpoint := newTestOrchestrator(t, fetcher, Config{Workers: 3})
	records := testRecords(5)

	outcomes, err := o.RunBatch(context.Background(), records, 0, 5)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	for i, out := range outcomes {
		assert.Equal(t, i, out.Ordinal)
		assert.True(t, out.Succeeded)
		assert.Equal(t, 1, out.Attempts)
		assert.True(t, artifacts.Exists(i))
	}

	cp, found, err := checkpoint.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, cp.LastProcessed)
	assert.Equal(t, 5, cp.Total)
}

func TestRunBatchSkipsExistingArtifacts(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})
	records := testRecords(4)

	require.NoError(t, artifacts.Put(1, []byte("already here")))

	outcomes, err := o.RunBatch(context.Background(), records, 0, 4)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)
	assert.Equal(t, 0, fetcher.callCount(records[1].URL), "existing artifact must not be re-fetched")

	// Resume property: every ordinal in the window now has an artifact.
	for i := 0; i < 4; i++ {
		assert.True(t, artifacts.Exists(i))
	}

	data, err := os.ReadFile(artifacts.Path(1))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data), "re-run must not overwrite")
}

func TestRunBatchRecordsFailureWithoutBlockingOthers(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})
	records := testRecords(3)
	fetcher.errs[records[1].URL] = errors.New("status 503")

	outcomes, err := o.RunBatch(context.Background(), records, 0, 3)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].Succeeded)
	assert.True(t, outcomes[2].Succeeded)

	failed := outcomes[1]
	assert.False(t, failed.Succeeded)
	assert.Equal(t, 3, failed.Attempts, "all three attempts used")
	assert.Contains(t, failed.Err, "status 503")
	assert.Equal(t, 3, fetcher.callCount(records[1].URL))

	// Error artifact persisted with message and locator.
	data, err := os.ReadFile(artifacts.Dir() + "/article_0002_error.txt")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error: status 503")
	assert.Contains(t, string(data), "URL: "+records[1].URL)

	assert.False(t, artifacts.Exists(1))
}

func TestRunBatchEmptyWindow(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newFakeFetcher(), Config{Workers: 2})

	outcomes, err := o.RunBatch(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	outcomes, err = o.RunBatch(context.Background(), testRecords(3), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunBatchWindowClipping(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})
	records := testRecords(5)

	outcomes, err := o.RunBatch(context.Background(), records, 3, 100)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.False(t, artifacts.Exists(0))
	assert.True(t, artifacts.Exists(3))
	assert.True(t, artifacts.Exists(4))
}

func TestRunProcessesAllWindows(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, checkpoint := newTestOrchestrator(t, fetcher, Config{
		Workers:    2,
		BatchSize:  2,
		BatchPause: time.Millisecond,
	})
	records := testRecords(5)

	outcomes, err := o.Run(context.Background(), records, 0)
	require.NoError(t, err)
	assert.Len(t, outcomes, 5)
	for i := 0; i < 5; i++ {
		assert.True(t, artifacts.Exists(i))
	}

	cp, found, err := checkpoint.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, cp.LastProcessed)
	assert.Equal(t, 5, cp.Completed)
	assert.Equal(t, 5, cp.Total)
}

func TestRunResumeAfterPartialRun(t *testing.T) {
	fetcher := newFakeFetcher()
	o, artifacts, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2, BatchSize: 10})
	records := testRecords(6)

	// Simulate a partial earlier run.
	require.NoError(t, artifacts.Put(0, []byte("a")))
	require.NoError(t, artifacts.Put(1, []byte("b")))
	require.NoError(t, artifacts.Put(4, []byte("e")))

	outcomes, err := o.Run(context.Background(), records, 0)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3, "only missing ordinals are fetched")

	list, err := artifacts.List()
	require.NoError(t, err)
	assert.Len(t, list, 6, "artifact count equals the window size after resume")
}

func TestRunStartBeyondEnd(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newFakeFetcher(), Config{Workers: 2})
	outcomes, err := o.Run(context.Background(), testRecords(3), 10)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

// gateFetcher delays one URL until the context is cancelled, letting a test
// hold an early ordinal in flight while later ordinals complete.
type gateFetcher struct {
	inner    *fakeFetcher
	gatedURL string
	gate     chan struct{}
}

func (g *gateFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == g.gatedURL {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Fetch(ctx, url)
}

func TestMidBatchCheckpointNeverSkipsInFlightOrdinal(t *testing.T) {
	records := testRecords(11)
	fetcher := &gateFetcher{
		inner:    newFakeFetcher(),
		gatedURL: records[0].URL,
		gate:     make(chan struct{}),
	}

	dir := t.TempDir()
	artifacts, err := store.NewArtifactStore(dir)
	require.NoError(t, err)
	checkpoint := store.NewCheckpointFile(dir)
	o := NewOrchestrator(fetcher, immediateRetry{}, artifacts, checkpoint, Config{
		Workers:         2,
		CheckpointEvery: 10,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.RunBatch(ctx, records, 0, 11)
	}()

	// Ordinals 1-10 complete while ordinal 0 is still in flight, so the
	// every-10th checkpoint fires with a hole at the window start.
	require.Eventually(t, func() bool {
		cp, found, err := checkpoint.Load()
		return err == nil && found && cp.Completed >= 10
	}, 5*time.Second, 10*time.Millisecond)

	cp, found, err := checkpoint.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, artifacts.Exists(0))
	assert.Equal(t, 0, cp.LastProcessed, "resume index must not pass an unfetched ordinal")

	// Interrupt the run with ordinal 0 still outstanding.
	cancel()
	<-done

	// A fresh run resuming from the checkpoint must cover ordinal 0.
	resumed := NewOrchestrator(newFakeFetcher(), immediateRetry{}, artifacts, checkpoint, Config{
		Workers:         2,
		CheckpointEvery: 10,
	}, nil)
	_, err = resumed.Run(context.Background(), records, cp.LastProcessed)
	require.NoError(t, err)

	list, err := artifacts.List()
	require.NoError(t, err)
	assert.Len(t, list, 11, "artifact count after resume equals the window size")
	assert.True(t, artifacts.Exists(0))
}

func TestCheckpointCadence(t *testing.T) {
	fetcher := newFakeFetcher()
	dir := t.TempDir()
	artifacts, err := store.NewArtifactStore(dir)
	require.NoError(t, err)
	checkpoint := store.NewCheckpointFile(dir)
	o := NewOrchestrator(fetcher, immediateRetry{}, artifacts, checkpoint, Config{
		Workers:         1,
		CheckpointEvery: 10,
	}, nil)

	// 25 completions: checkpoints at 10, 20, and the final 25.
	records := testRecords(25)
	_, err = o.RunBatch(context.Background(), records, 0, 25)
	require.NoError(t, err)

	cp, found, err := checkpoint.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 25, cp.LastProcessed)
}

package convert

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yharby/langflow-ollama-pixi/internal/backend"
)

// fakeConverter runs a per-path script, blocking until the context dies
// when asked to hang.
type fakeConverter struct {
	mu       sync.Mutex
	active   int
	peak     int
	markdown map[string]string
	fail     map[string]error
	hang     map[string]bool
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath string) (backend.Output, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.hang[inputPath] {
		<-ctx.Done()
		return backend.Output{}, ctx.Err()
	}
	if err := f.fail[inputPath]; err != nil {
		return backend.Output{}, err
	}
	return backend.Output{Markdown: f.markdown[inputPath]}, nil
}

func readLogLines(t *testing.T, path string) []logRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer func() { _ = f.Close() }()

	var records []logRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec logRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("malformed log line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	return records
}

func TestDispatchTimeoutDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{
		markdown: map[string]string{"b.pdf": "# B"},
		hang:     map[string]bool{"a.pdf": true},
	}
	logPath := filepath.Join(t.TempDir(), "results.jsonl")
	resultLog, err := OpenResultLog(logPath)
	if err != nil {
		t.Fatalf("open result log: %v", err)
	}
	defer func() { _ = resultLog.Close() }()

	d := NewDispatcher(conv, 1, resultLog)
	results := d.Dispatch(context.Background(), []Job{
		{InputPath: "a.pdf", Timeout: 50 * time.Millisecond},
		{InputPath: "b.pdf", Timeout: time.Second},
	})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ErrKind != ErrKindTimeout {
		t.Fatalf("job a: kind %q, want %q (msg %q)", results[0].ErrKind, ErrKindTimeout, results[0].ErrMsg)
	}
	if !results[1].Succeeded() || results[1].Markdown != "# B" {
		t.Fatalf("job b: %+v", results[1])
	}

	records := readLogLines(t, logPath)
	want := []logRecord{
		{InputPath: "a.pdf", Status: "failure", Error: results[0].ErrMsg},
		{InputPath: "b.pdf", Status: "success", Markdown: "# B"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("result log mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchBackendErrorIsIsolated(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{
		markdown: map[string]string{"ok.pdf": "fine"},
		fail:     map[string]error{"bad.pdf": errors.New("no content extracted from result files")},
	}
	d := NewDispatcher(conv, 2, nil)
	results := d.Dispatch(context.Background(), []Job{
		{InputPath: "bad.pdf", Timeout: time.Second},
		{InputPath: "ok.pdf", Timeout: time.Second},
	})

	if results[0].ErrKind != ErrKindBackend {
		t.Fatalf("bad.pdf: kind %q, want %q", results[0].ErrKind, ErrKindBackend)
	}
	if results[0].ErrMsg == "" {
		t.Fatal("backend failure lost its message")
	}
	if !results[1].Succeeded() {
		t.Fatalf("ok.pdf should have succeeded: %+v", results[1])
	}
}

func TestDispatchRespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{markdown: map[string]string{}}
	jobs := make([]Job, 8)
	for i := range jobs {
		path := fmt.Sprintf("doc-%d.pdf", i)
		conv.markdown[path] = "x"
		jobs[i] = Job{InputPath: path, Timeout: time.Second}
	}

	d := NewDispatcher(conv, 1, nil)
	d.Dispatch(context.Background(), jobs)

	if conv.peak != 1 {
		t.Fatalf("peak concurrency %d, want 1", conv.peak)
	}
}

func TestDispatchResultsComeBackInInputOrder(t *testing.T) {
	t.Parallel()

	conv := &fakeConverter{markdown: map[string]string{}}
	jobs := make([]Job, 20)
	for i := range jobs {
		path := fmt.Sprintf("doc-%02d.pdf", i)
		conv.markdown[path] = path
		jobs[i] = Job{InputPath: path, Timeout: time.Second}
	}

	d := NewDispatcher(conv, 4, nil)
	results := d.Dispatch(context.Background(), jobs)
	for i, res := range results {
		if res.InputPath != jobs[i].InputPath {
			t.Fatalf("result %d is for %s, want %s", i, res.InputPath, jobs[i].InputPath)
		}
	}
}

func TestDispatchCanceledContextSkipsPendingJobs(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	conv := &countingConverter{started: &started}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(conv, 1, nil)
	results := d.Dispatch(ctx, []Job{
		{InputPath: "a.pdf", Timeout: time.Second},
		{InputPath: "b.pdf", Timeout: time.Second},
	})

	if started.Load() != 0 {
		t.Fatalf("backend was invoked %d times after cancellation", started.Load())
	}
	for _, res := range results {
		if res.ErrKind != ErrKindBackend || res.ErrMsg != "canceled before dispatch" {
			t.Fatalf("unexpected result after cancellation: %+v", res)
		}
	}
}

type countingConverter struct {
	started *atomic.Int32
}

func (c *countingConverter) Convert(_ context.Context, _ string) (backend.Output, error) {
	c.started.Add(1)
	return backend.Output{}, nil
}

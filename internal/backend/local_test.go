package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeResults acts as a pipeline that drops the given lines into the
// workspace results directory.
func writeResults(t *testing.T, lines ...string) PipelineRunner {
	t.Helper()
	return func(ctx context.Context, workspace, inputPath string) ([]byte, error) {
		resultsDir := filepath.Join(workspace, "results")
		if err := os.MkdirAll(resultsDir, 0o750); err != nil {
			return nil, err
		}
		content := strings.Join(lines, "\n") + "\n"
		return nil, os.WriteFile(filepath.Join(resultsDir, "output.jsonl"), []byte(content), 0o640)
	}
}

func TestLocalConvertExtractsText(t *testing.T) {
	t.Parallel()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(writeResults(t,
		`{"id": "doc-1", "text": "Page one"}`,
		`{"id": "doc-2", "text": "Page two"}`,
	))

	out, err := l.Convert(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Markdown != "Page one\n\n---\n\nPage two" {
		t.Fatalf("markdown = %q", out.Markdown)
	}
	if out.Metadata["extracted_documents"] != "2" {
		t.Fatalf("metadata = %+v", out.Metadata)
	}
}

func TestLocalConvertSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(writeResults(t,
		`{not json`,
		`{"text": "Survivor"}`,
	))

	out, err := l.Convert(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Markdown != "Survivor" {
		t.Fatalf("markdown = %q", out.Markdown)
	}
}

func TestLocalConvertNoResultsDirectory(t *testing.T) {
	t.Parallel()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(func(ctx context.Context, workspace, inputPath string) ([]byte, error) {
		return []byte("pipeline ran but wrote nothing"), nil
	})

	_, err := l.Convert(context.Background(), "report.pdf")
	if err == nil || !strings.Contains(err.Error(), "no results directory") {
		t.Fatalf("expected no-results-directory error, got %v", err)
	}
}

func TestLocalConvertNoContent(t *testing.T) {
	t.Parallel()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(writeResults(t, `{"text": ""}`))

	_, err := l.Convert(context.Background(), "report.pdf")
	if err == nil || !strings.Contains(err.Error(), "no content extracted") {
		t.Fatalf("expected no-content error, got %v", err)
	}
}

func TestLocalConvertPipelineFailure(t *testing.T) {
	t.Parallel()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(func(ctx context.Context, workspace, inputPath string) ([]byte, error) {
		return []byte("torch not compiled with CUDA enabled"), errors.New("exit status 1")
	})

	_, err := l.Convert(context.Background(), "report.pdf")
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if !strings.Contains(err.Error(), "exit status 1") || !strings.Contains(err.Error(), "CUDA") {
		t.Fatalf("error lacks cause and output tail: %v", err)
	}
}

func TestLocalConvertSurfacesTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	l := NewLocal(t.TempDir())
	l.UsePipelineRunner(func(ctx context.Context, workspace, inputPath string) ([]byte, error) {
		return nil, ctx.Err()
	})

	_, err := l.Convert(ctx, "report.pdf")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestLocalConvertIsolatesJobs(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	l := NewLocal(workspace)
	l.UsePipelineRunner(func(ctx context.Context, jobWorkspace, inputPath string) ([]byte, error) {
		resultsDir := filepath.Join(jobWorkspace, "results")
		if err := os.MkdirAll(resultsDir, 0o750); err != nil {
			return nil, err
		}
		line := fmt.Sprintf(`{"text": "from %s"}`, filepath.Base(inputPath))
		return nil, os.WriteFile(filepath.Join(resultsDir, "out.jsonl"), []byte(line+"\n"), 0o640)
	})

	first, err := l.Convert(context.Background(), "a.pdf")
	if err != nil {
		t.Fatalf("convert a.pdf: %v", err)
	}
	second, err := l.Convert(context.Background(), "b.pdf")
	if err != nil {
		t.Fatalf("convert b.pdf: %v", err)
	}

	if first.Markdown != "from a.pdf" {
		t.Fatalf("first markdown = %q", first.Markdown)
	}
	if second.Markdown != "from b.pdf" {
		t.Fatalf("second job saw other job's results: %q", second.Markdown)
	}
}

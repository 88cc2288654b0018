package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yharby/langflow-ollama-pixi/internal/file"
)

// markdownJoiner separates documents extracted from one pipeline run.
const markdownJoiner = "\n\n---\n\n"

// PipelineRunner executes the local olmOCR pipeline for one input inside
// the given workspace and returns the combined process output.
type PipelineRunner func(ctx context.Context, workspace, inputPath string) ([]byte, error)

// Local converts documents with the accelerator-backed olmOCR pipeline.
// Every conversion gets its own scratch directory under the workspace so
// result files from different jobs never mix.
type Local struct {
	workspace   string
	runPipeline PipelineRunner
}

// NewLocal builds a converter that writes scratch state under workspace.
func NewLocal(workspace string) *Local {
	return &Local{workspace: workspace, runPipeline: runPixiPipeline}
}

// UsePipelineRunner allows tests to inject a fake pipeline.
// Intended for test setup only.
func (l *Local) UsePipelineRunner(fn PipelineRunner) {
	if fn != nil {
		l.runPipeline = fn
	}
}

// Convert runs the pipeline for one document and collects the markdown it
// wrote under <scratch>/results. The caller owns the timeout via ctx.
func (l *Local) Convert(ctx context.Context, inputPath string) (Output, error) {
	if err := file.EnsureDir(l.workspace); err != nil {
		return Output{}, err
	}
	scratch, err := os.MkdirTemp(l.workspace, "job-*")
	if err != nil {
		return Output{}, fmt.Errorf("create job workspace: %w", err)
	}

	log.Debug().
		Str("input", inputPath).
		Str("workspace", scratch).
		Msg("running local conversion pipeline")

	out, err := l.runPipeline(ctx, scratch, inputPath)
	if err != nil {
		// Cancellation must surface as such, not as pipeline output noise.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, ctxErr
		}
		return Output{}, fmt.Errorf("pipeline failed: %w: %s", err, tailOf(out, errorBodyLimit))
	}

	parts, err := readResults(filepath.Join(scratch, "results"))
	if err != nil {
		return Output{}, err
	}

	metadata := map[string]string{
		"extracted_documents": strconv.Itoa(len(parts)),
		"workspace":           scratch,
	}
	return Output{Markdown: strings.Join(parts, markdownJoiner), Metadata: metadata}, nil
}

// readResults loads every *.jsonl under resultsDir and extracts the text
// field per line. No directory or no text at all means the pipeline
// produced nothing usable.
func readResults(resultsDir string) ([]string, error) {
	if _, err := os.Stat(resultsDir); err != nil {
		return nil, errors.New("no results directory in workspace, the pipeline may have failed silently")
	}

	matches, err := filepath.Glob(filepath.Join(resultsDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}

	var parts []string
	for _, path := range matches {
		texts, err := extractTexts(path)
		if err != nil {
			log.Warn().Str("file", filepath.Base(path)).Err(err).Msg("skipping unreadable result file")
			continue
		}
		parts = append(parts, texts...)
	}
	if len(parts) == 0 {
		return nil, errors.New("no content extracted from result files")
	}
	return parts, nil
}

func extractTexts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var texts []string
	scanner := bufio.NewScanner(f)
	// A single converted document can exceed the default scanner buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Warn().Str("file", filepath.Base(path)).Err(err).Msg("skipping malformed result line")
			continue
		}
		if doc.Text != "" {
			texts = append(texts, doc.Text)
		}
	}
	return texts, scanner.Err()
}

// tailOf keeps the end of the pipeline output, where the failure usually is.
func tailOf(out []byte, n int) string {
	text := strings.TrimSpace(string(out))
	if len(text) <= n {
		return text
	}
	return "..." + text[len(text)-n:]
}

func runPixiPipeline(ctx context.Context, workspace, inputPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"pixi", "run", "--environment", "olmocr",
		"python", "-m", "olmocr.pipeline",
		workspace, "--markdown", "--pdfs", inputPath,
	)
	return cmd.CombinedOutput()
}

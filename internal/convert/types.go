// Package convert turns a set of input documents into markdown by driving
// a conversion backend through a bounded worker pool.
package convert

import (
	"context"
	"time"

	"github.com/yharby/langflow-ollama-pixi/internal/backend"
)

// Error kinds reported in failure results.
const (
	// ErrKindTimeout marks a job that hit its own deadline.
	ErrKindTimeout = "timeout"
	// ErrKindBackend marks any other per-job conversion failure.
	ErrKindBackend = "backend"
)

// Job is one document to convert. Jobs are independent; nothing is shared
// between them except the result log.
type Job struct {
	InputPath string
	Timeout   time.Duration
}

// Result is the outcome for one job. An empty ErrKind means success.
type Result struct {
	InputPath string
	Markdown  string
	Metadata  map[string]string
	ErrKind   string
	ErrMsg    string
}

// Succeeded reports whether the job produced markdown.
func (r Result) Succeeded() bool { return r.ErrKind == "" }

// Converter is the backend surface the dispatcher drives.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (backend.Output, error)
}

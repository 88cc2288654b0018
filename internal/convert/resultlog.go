package convert

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/yharby/langflow-ollama-pixi/internal/file"
)

// logRecord is one line of the result log.
type logRecord struct {
	InputPath string `json:"input_path"`
	Status    string `json:"status"`
	Markdown  string `json:"markdown,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ResultLog persists one JSON record per finished job, append-only and in
// input order. Jobs complete out of order under the worker pool, so
// records are buffered by job index and only the contiguous prefix is
// flushed; a crash mid-batch leaves a well-formed file covering every job
// up to the first unfinished one.
type ResultLog struct {
	mu      sync.Mutex
	sink    io.Writer
	closer  func() error
	pending map[int][]byte
	next    int
}

// OpenResultLog opens (or creates) the log file at path for appending.
func OpenResultLog(path string) (*ResultLog, error) {
	f, err := file.OpenAppend(path)
	if err != nil {
		return nil, err
	}
	return &ResultLog{sink: f, closer: f.Close, pending: make(map[int][]byte)}, nil
}

// NewResultLog wraps an arbitrary writer, for tests.
func NewResultLog(w io.Writer) *ResultLog {
	return &ResultLog{sink: w, closer: func() error { return nil }, pending: make(map[int][]byte)}
}

// Append records the result of the job at index. Lines reach the file in
// index order regardless of the order Append is called in. Each line is
// written whole under the lock; a concurrent shutdown never tears one.
func (l *ResultLog) Append(index int, res Result) error {
	rec := logRecord{InputPath: res.InputPath}
	if res.Succeeded() {
		rec.Status = "success"
		rec.Markdown = res.Markdown
	} else {
		rec.Status = "failure"
		rec.Error = res.ErrMsg
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[index] = line
	for {
		buffered, ok := l.pending[l.next]
		if !ok {
			return nil
		}
		if _, err := l.sink.Write(buffered); err != nil {
			return fmt.Errorf("append result log: %w", err)
		}
		delete(l.pending, l.next)
		l.next++
	}
}

// Close releases the underlying file. Results still buffered for an
// unfinished earlier job are dropped; the flushed prefix stays intact.
func (l *ResultLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer()
}

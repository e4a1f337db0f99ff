package cascade

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultMaxBytes   = 50 * 1024 * 1024 // 50 MiB
	defaultMaxBackups = 3
)

// TraceEntry is one decision-trace record (spec.md §4.6/§6): the full
// per-request routing/scoring/cost narrative, written as one JSON object
// per line so the file stays greppable and streamable.
type TraceEntry struct {
	Timestamp       time.Time      `json:"timestamp"`
	RequestID       string         `json:"request_id"`
	Domain          string         `json:"domain"`
	Complexity      string         `json:"complexity"`
	Strategy        string         `json:"strategy"`
	DrafterModel    string         `json:"drafter_model,omitempty"`
	VerifierModel   string         `json:"verifier_model,omitempty"`
	DraftAccepted   bool           `json:"draft_accepted"`
	VerifierUsed    bool           `json:"verifier_used"`
	BudgetForced    bool           `json:"budget_forced"`
	QualityScore    float64        `json:"quality_score"`
	Provenance      string         `json:"provenance,omitempty"`
	Threshold       float64        `json:"threshold"`
	LatencyMs       float64        `json:"latency_ms"`
	DraftLatencyMs  float64        `json:"draft_latency_ms,omitempty"`
	VerifyLatencyMs float64        `json:"verify_latency_ms,omitempty"`
	CostUSD         float64        `json:"cost_usd"`
	DraftCost       float64        `json:"draft_cost"`
	VerifierCost    float64        `json:"verifier_cost"`
	Success         bool           `json:"success"`
	ErrorClass      string         `json:"error_class,omitempty"`
	Reasons         []string       `json:"reasons,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TraceWriter appends decision traces to a JSONL file, rotating it once it
// crosses maxBytes. No lumberjack-equivalent exists anywhere in the
// retrieved pack, so rotation is hand-rolled: path -> path.1 -> path.2 ->
// ... -> path.<maxBackups>, oldest backup dropped.
type TraceWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	f          *os.File
	size       int64
}

// NewTraceWriter opens (creating if needed) the trace file at path. A
// maxBytes <= 0 uses the 50 MiB default; maxBackups <= 0 uses 3.
func NewTraceWriter(path string, maxBytes int64, maxBackups int) (*TraceWriter, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("trace: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: stat %s: %w", path, err)
	}
	return &TraceWriter{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
		f:          f,
		size:       info.Size(),
	}, nil
}

// Write appends entry as one JSON line, rotating the file first if the next
// write would cross maxBytes.
func (w *TraceWriter) Write(entry TraceEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(line)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.f.Write(line)
	if err != nil {
		return fmt.Errorf("trace: write: %w", err)
	}
	w.size += int64(n)
	return nil
}

// rotateLocked closes the current file, shifts path.<n> -> path.<n+1>
// (dropping the oldest), renames path -> path.1, and reopens path fresh.
// Caller must hold w.mu.
func (w *TraceWriter) rotateLocked() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("trace: close before rotate: %w", err)
	}

	oldest := fmt.Sprintf("%s.%d", w.path, w.maxBackups)
	_ = os.Remove(oldest)
	for n := w.maxBackups - 1; n >= 1; n-- {
		src := fmt.Sprintf("%s.%d", w.path, n)
		dst := fmt.Sprintf("%s.%d", w.path, n+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("trace: rename to backup: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("trace: reopen after rotate: %w", err)
	}
	w.f = f
	w.size = 0
	return nil
}

// Close flushes and closes the underlying file.
func (w *TraceWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry represents one run in a suite trace.
// Each entry is serialized as a JSON line in trace.jsonl.
type TraceEntry struct {
	// Sequence is the position of the run within the suite, starting at 0
	Sequence int `json:"sequence"`

	// Repeat is the repeat index of this run for its workload
	Repeat int `json:"repeat"`

	RunID    string `json:"runId"`
	Workload string `json:"workload"`

	// ElapsedMS is the timed region in milliseconds
	ElapsedMS float64 `json:"elapsedMs"`

	Verified bool `json:"verified"`
	Passed   bool `json:"passed"`

	// Error is set when the run aborted with a fatal error
	Error string `json:"error,omitempty"`

	// Timestamp records when this trace entry was created
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter writes trace entries to a JSONL file.
// It uses buffered I/O for performance and is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates a new trace writer for the given suite.
// The trace file is created at <baseDir>/suites/<suiteID>/trace.jsonl.
// If append is true, new entries are appended to existing file.
func NewTraceWriter(baseDir, suiteID string, append bool) (*TraceWriter, error) {
	path := tracePath(baseDir, suiteID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create suite directory: %w", err)
	}

	// Open file in append or create mode
	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	writer := bufio.NewWriterSize(file, 16*1024)

	return &TraceWriter{
		file:   file,
		writer: writer,
		path:   path,
	}, nil
}

// Write appends a trace entry to the file.
// The entry is buffered and will be written on Flush() or Close().
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Serialize to JSON
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	// Write JSON line
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}

	// Write newline
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush writes any buffered data to the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}

	// Also sync to disk for durability
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}

	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Flush buffer first
	if err := tw.writer.Flush(); err != nil {
		tw.file.Close() // Try to close anyway
		return fmt.Errorf("failed to flush on close: %w", err)
	}

	// Close file
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}

	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

func tracePath(baseDir, suiteID string) string {
	return filepath.Join(baseDir, "suites", suiteID, "trace.jsonl")
}

// TraceReader decodes the entries of a suite trace in file order.
type TraceReader struct {
	file *os.File
	dec  *json.Decoder
	next int
}

// NewTraceReader opens the trace of suiteID. A missing trace is reported as
// *NotFoundError.
func NewTraceReader(baseDir, suiteID string) (*TraceReader, error) {
	file, err := os.Open(tracePath(baseDir, suiteID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: suiteID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &TraceReader{file: file, dec: json.NewDecoder(bufio.NewReader(file))}, nil
}

// Read returns the next entry, or io.EOF after the last one. A truncated
// final line is an error, not io.EOF.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	var entry TraceEntry
	if err := tr.dec.Decode(&entry); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("trace entry %d: %w", tr.next, err)
	}
	tr.next++
	return &entry, nil
}

// ReadAll returns the remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, *entry)
	}
}

func (tr *TraceReader) Close() error {
	return tr.file.Close()
}

// DeleteTrace removes the trace of suiteID. A missing trace is not an error.
func DeleteTrace(baseDir, suiteID string) error {
	if err := os.Remove(tracePath(baseDir, suiteID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}

package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	suiteID := "suite-123"

	writer, err := NewTraceWriter(tmpDir, suiteID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	if want := filepath.Join(tmpDir, "suites", suiteID, "trace.jsonl"); writer.Path() != want {
		t.Errorf("Path() = %s, want %s", writer.Path(), want)
	}

	entries := []TraceEntry{
		{Sequence: 0, Repeat: 0, RunID: "a", Workload: "binomial", ElapsedMS: 4.5, Verified: true, Passed: true, Timestamp: time.Now()},
		{Sequence: 1, Repeat: 1, RunID: "b", Workload: "binomial", ElapsedMS: 4.1, Verified: true, Passed: false, Timestamp: time.Now()},
		{Sequence: 2, Repeat: 0, Workload: "ray", Error: "enqueue kernel: CL_OUT_OF_RESOURCES (-5)", Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewTraceReader(tmpDir, suiteID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	readEntries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(readEntries) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(readEntries))
	}

	for i, entry := range readEntries {
		if entry.Sequence != entries[i].Sequence || entry.RunID != entries[i].RunID {
			t.Errorf("Entry %d: got %d/%s, want %d/%s", i, entry.Sequence, entry.RunID, entries[i].Sequence, entries[i].RunID)
		}
		if entry.ElapsedMS != entries[i].ElapsedMS {
			t.Errorf("Entry %d: expected elapsed %f, got %f", i, entries[i].ElapsedMS, entry.ElapsedMS)
		}
		if entry.Passed != entries[i].Passed || entry.Error != entries[i].Error {
			t.Errorf("Entry %d: verdict mismatch: %+v", i, entry)
		}
	}
}

func TestTraceWriter_Append(t *testing.T) {
	tmpDir := t.TempDir()
	suiteID := "suite-append"

	for i := 0; i < 2; i++ {
		writer, err := NewTraceWriter(tmpDir, suiteID, true)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		if err := writer.Write(TraceEntry{Sequence: i, Workload: "nbody", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
		writer.Close()
	}

	reader, err := NewTraceReader(tmpDir, suiteID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after append, got %d", len(entries))
	}

	// A non-append writer truncates.
	writer, err := NewTraceWriter(tmpDir, suiteID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	writer.Close()

	info, err := os.Stat(filepath.Join(tmpDir, "suites", suiteID, "trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected truncated trace, size %d", info.Size())
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewTraceWriter(tmpDir, "suite-flush", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	writer.Write(TraceEntry{Sequence: 0, Workload: "gaussian", Timestamp: time.Now()})

	info, _ := os.Stat(writer.Path())
	if info.Size() != 0 {
		t.Errorf("Expected buffered write, file size %d", info.Size())
	}

	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	info, _ = os.Stat(writer.Path())
	if info.Size() == 0 {
		t.Error("Expected data on disk after Flush")
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tmpDir := t.TempDir()
	suiteID := "suite-iter"

	writer, _ := NewTraceWriter(tmpDir, suiteID, false)
	for i := 0; i < 3; i++ {
		writer.Write(TraceEntry{Sequence: i, Workload: "mandelbrot", Timestamp: time.Now()})
	}
	writer.Close()

	reader, err := NewTraceReader(tmpDir, suiteID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	for i := 0; i < 3; i++ {
		entry, err := reader.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if entry.Sequence != i {
			t.Errorf("Read %d: got sequence %d", i, entry.Sequence)
		}
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceReader_TruncatedLine(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewTraceWriter(tmpDir, "suite-cut", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	writer.Write(TraceEntry{Sequence: 0, Workload: "ray", Timestamp: time.Now()})
	writer.Close()

	f, err := os.OpenFile(writer.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"sequence":1,"workl`)
	f.Close()

	reader, err := NewTraceReader(tmpDir, "suite-cut")
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Expected decode error for truncated line, got %v", err)
	}
	if len(entries) != 1 || entries[0].Workload != "ray" {
		t.Errorf("Expected the complete entry before the cut, got %+v", entries)
	}
}

func TestDeleteTrace(t *testing.T) {
	tmpDir := t.TempDir()
	suiteID := "suite-delete"

	writer, err := NewTraceWriter(tmpDir, suiteID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	writer.Write(TraceEntry{Workload: "ray", Timestamp: time.Now()})
	writer.Close()

	if err := DeleteTrace(tmpDir, suiteID); err != nil {
		t.Fatalf("Failed to delete trace: %v", err)
	}
	if _, err := os.Stat(writer.Path()); !os.IsNotExist(err) {
		t.Error("Trace file still exists after delete")
	}

	// Deleting again is not an error.
	if err := DeleteTrace(tmpDir, suiteID); err != nil {
		t.Errorf("DeleteTrace should not error for nonexistent file, got: %v", err)
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	suiteID := "suite-concurrent"

	writer, err := NewTraceWriter(tmpDir, suiteID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(seq int) {
			if err := writer.Write(TraceEntry{Sequence: seq, Timestamp: time.Now()}); err != nil {
				t.Errorf("Concurrent write failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	writer.Flush()

	reader, err := NewTraceReader(tmpDir, suiteID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries, got %d", len(entries))
	}
}

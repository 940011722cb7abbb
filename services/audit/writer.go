package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer appends events to a tamper-evident audit trail.
type Writer interface {
	Write(ctx context.Context, event *Event) (WriteResult, error)
}

// JSONLWriter appends hash-chained events to one JSONL file per UTC day.
// A single lock serializes writers so the chain never forks.
type JSONLWriter struct {
	directory string

	mu         sync.Mutex
	lastHash   string
	lineNumber int64
}

// NewJSONLWriter creates the audit directory if needed and recovers the chain
// tail from today's file so restarts continue the chain instead of resetting
// it to genesis.
func NewJSONLWriter(directory string) (*JSONLWriter, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	w := &JSONLWriter{
		directory: directory,
		lastHash:  GenesisHash,
	}
	w.loadTailState()
	return w, nil
}

// Write chains and appends one event. The event's PrevHash and EntryHash are
// populated before serialization.
func (w *JSONLWriter) Write(ctx context.Context, event *Event) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	event.PrevHash = w.lastHash
	event.EntryHash = ComputeEntryHash(*event)

	line, err := json.Marshal(event)
	if err != nil {
		return WriteResult{PrevHash: w.lastHash, LineNumber: w.lineNumber},
			fmt.Errorf("failed to marshal audit event: %w", err)
	}

	f, err := os.OpenFile(w.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return WriteResult{PrevHash: w.lastHash, LineNumber: w.lineNumber},
			fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return WriteResult{PrevHash: w.lastHash, LineNumber: w.lineNumber},
			fmt.Errorf("failed to append audit event: %w", err)
	}

	w.lastHash = event.EntryHash
	w.lineNumber++
	return WriteResult{
		EntryHash:  event.EntryHash,
		PrevHash:   event.PrevHash,
		LineNumber: w.lineNumber,
	}, nil
}

// LastHash returns the current chain tail.
func (w *JSONLWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// ReadAll returns every event in today's file, in write order.
func (w *JSONLWriter) ReadAll() ([]Event, error) {
	w.mu.Lock()
	path := w.currentPath()
	w.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return events, fmt.Errorf("corrupt audit line %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read audit file: %w", err)
	}
	return events, nil
}

func (w *JSONLWriter) currentPath() string {
	day := time.Now().UTC().Format("2006-01-02")
	return filepath.Join(w.directory, fmt.Sprintf("leasegate-audit-%s.jsonl", day))
}

// loadTailState resumes the chain from the last intact line of today's file.
// Corrupt tail lines are tolerated; the chain resumes from the last line that
// parsed.
func (w *JSONLWriter) loadTailState() {
	f, err := os.Open(w.currentPath())
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		w.lineNumber++
		if e.EntryHash != "" {
			w.lastHash = e.EntryHash
		}
	}
}

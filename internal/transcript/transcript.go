// Package transcript keeps an append-only JSONL audit of handled messages.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one inbound message and the reply it produced.
type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	CorrespondentID int64     `json:"correspondent_id"`
	UpdateID        int64     `json:"update_id,omitempty"`
	Text            string    `json:"text"`
	Route           string    `json:"route"`
	Reply           string    `json:"reply"`
}

// Recorder persists transcript records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Append(rec Record) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(Record) error { return nil }

type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// New returns a FileRecorder for path, or Nop when path is empty.
func New(path string) (Recorder, error) {
	if path == "" {
		return Nop{}, nil
	}
	return NewFileRecorder(path)
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure transcript dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to init transcript file: %w", err)
	}
	_ = f.Close()
	return &FileRecorder{path: path}, nil
}

func (r *FileRecorder) Append(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("encode append: %w", err)
	}
	return nil
}

// Load reads every record in file order. Malformed lines are skipped.
func (r *FileRecorder) Load() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []Record
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

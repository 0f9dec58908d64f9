package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammLedger/internal/model"
)

// JsonlSink appends skipped events to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// Append writes one skipped event as a JSON line. The file is opened per
// write; skips are rare and every line must survive a crash.
func (s *JsonlSink) Append(event model.SkippedEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal skipped event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open skipped sink: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write skipped event: %w", err)
	}
	return nil
}

var _ SkippedSink = (*JsonlSink)(nil)

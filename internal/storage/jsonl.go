package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"metadataWatch/internal/model"
)

// JsonlSink appends refresh tasks to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutTaskBatch appends a batch of tasks as JSON lines.
func (s *JsonlSink) PutTaskBatch(_ context.Context, tasks []model.RefreshTask) error {
	if len(tasks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLines(s.path, len(tasks), func(i int) interface{} {
		return tasks[i]
	})
}

// JsonlRejects appends rejected notifications to a JSONL file.
type JsonlRejects struct {
	path string
	mu   sync.Mutex
}

func NewJsonlRejects(path string) *JsonlRejects {
	return &JsonlRejects{path: path}
}

// PutRejectBatch appends a batch of decode errors as JSON lines.
func (s *JsonlRejects) PutRejectBatch(_ context.Context, rejects []model.DecodeError) error {
	if len(rejects) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLines(s.path, len(rejects), func(i int) interface{} {
		return rejects[i]
	})
}

func appendLines(path string, count int, value func(int) interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < count; i++ {
		line, err := json.Marshal(value(i))
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

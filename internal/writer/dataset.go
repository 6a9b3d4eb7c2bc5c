package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/prefpack/prefpack/pkg/models"
)

// DatasetWriter handles thread-safe JSONL writing of training records
type DatasetWriter struct {
	file   *os.File
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewDatasetWriter creates a writer for the given output path
func NewDatasetWriter(path string, logger *slog.Logger) (*DatasetWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset file: %w", err)
	}

	logger.Info("Created dataset file", "path", path)
	return &DatasetWriter{
		file:   file,
		logger: logger,
	}, nil
}

// WritePacked writes one materialized packed batch
func (dw *DatasetWriter) WritePacked(batch models.PackedBatch) error {
	return dw.writeLine(batch)
}

// WritePair writes one unpacked tokenized pair
func (dw *DatasetWriter) WritePair(pair models.TokenizedPair) error {
	return dw.writeLine(pair)
}

func (dw *DatasetWriter) writeLine(record any) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := dw.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	dw.count++
	return nil
}

// Count returns the number of records written so far
func (dw *DatasetWriter) Count() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.count
}

// Close syncs and closes the dataset file
func (dw *DatasetWriter) Close() error {
	if err := dw.file.Sync(); err != nil {
		dw.logger.Warn("Failed to sync dataset file", "error", err)
	}
	if err := dw.file.Close(); err != nil {
		return fmt.Errorf("failed to close dataset file: %w", err)
	}
	dw.logger.Info("Closed dataset file", "records", dw.count)
	return nil
}

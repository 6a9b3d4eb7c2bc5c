package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prefpack/prefpack/internal/config"
	"github.com/prefpack/prefpack/pkg/models"
)

// Row is one raw JSONL record before any adaptation.
type Row map[string]any

// maxLineBytes bounds a single JSONL line. Long multi-turn prompts routinely
// blow past bufio.Scanner's 64K default.
const maxLineBytes = 16 * 1024 * 1024

// Load reads every input file named by the config and adapts rows into pair
// examples, applying the configured map function when one is set. Row order
// follows file order, then line order.
func Load(cfg config.DatasetConfig, logger *slog.Logger) ([]models.PairExample, error) {
	files, err := resolveFiles(cfg)
	if err != nil {
		return nil, err
	}

	var mapFn MapFunc
	if cfg.MapFn != "" {
		mapFn, err = LookupMapFn(cfg.MapFn)
		if err != nil {
			return nil, err
		}
	}

	var examples []models.PairExample
	for _, path := range files {
		loaded, err := loadFile(path, mapFn)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		examples = append(examples, loaded...)
		logger.Info("Loaded dataset file", "path", path, "rows", len(loaded))
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("no rows found in input files")
	}
	return examples, nil
}

// resolveFiles expands the config into an ordered file list. Exactly one of
// data_files/data_dir is set (enforced by config validation).
func resolveFiles(cfg config.DatasetConfig) ([]string, error) {
	if len(cfg.DataFiles) > 0 {
		return cfg.DataFiles, nil
	}

	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if cfg.Suffix != "" && !strings.HasSuffix(entry.Name(), cfg.Suffix) {
			continue
		}
		files = append(files, filepath.Join(cfg.DataDir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files found in %s", cfg.DataDir)
	}
	return files, nil
}

func loadFile(path string, mapFn MapFunc) ([]models.PairExample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var examples []models.PairExample
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ex, err := decodeRow([]byte(line), mapFn)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return examples, nil
}

// decodeRow turns one JSONL line into a PairExample. With a map function the
// raw row is adapted first; without one the row must already carry
// prompt/chosen/rejected. Group identity (group_id, depth) is read from the
// raw row in both cases.
func decodeRow(line []byte, mapFn MapFunc) (models.PairExample, error) {
	var raw Row
	dec := json.NewDecoder(strings.NewReader(string(line)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.PairExample{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var ex models.PairExample
	if mapFn != nil {
		adapted, err := mapFn(raw)
		if err != nil {
			return models.PairExample{}, err
		}
		ex = adapted
	} else {
		if err := json.Unmarshal(line, &ex); err != nil {
			return models.PairExample{}, fmt.Errorf("invalid pair row: %w", err)
		}
		if len(ex.Prompt) == 0 {
			return models.PairExample{}, fmt.Errorf("row is missing required key %q", "prompt")
		}
		if len(ex.Chosen) == 0 {
			return models.PairExample{}, fmt.Errorf("row is missing required key %q", "chosen")
		}
		if len(ex.Rejected) == 0 {
			return models.PairExample{}, fmt.Errorf("row is missing required key %q", "rejected")
		}
	}

	if gid, ok := raw["group_id"]; ok && gid != nil {
		ex.GroupID = fmt.Sprint(gid)
		ex.Grouped = true
	}
	if depth, ok := raw["depth"]; ok && depth != nil {
		num, ok := depth.(json.Number)
		if !ok {
			return models.PairExample{}, fmt.Errorf("depth must be an integer (got %T)", depth)
		}
		seq, err := num.Int64()
		if err != nil {
			return models.PairExample{}, fmt.Errorf("depth must be an integer: %w", err)
		}
		ex.SeqNum = int(seq)
	}

	return ex, nil
}

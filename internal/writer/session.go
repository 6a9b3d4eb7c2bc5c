package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SessionManager manages the output directory for one packing session
type SessionManager struct {
	sessionID  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a timestamped session directory under outputDir
func NewSessionManager(outputDir string, logger *slog.Logger) (*SessionManager, error) {
	if outputDir == "" {
		outputDir = "output"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	sessionDir := filepath.Join(outputDir, "session_"+timestamp)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	sm := &SessionManager{
		sessionID:  uuid.New().String(),
		sessionDir: sessionDir,
		logger:     logger,
	}
	logger.Info("Created session directory", "path", sessionDir, "session_id", sm.sessionID)
	return sm, nil
}

// SessionID returns the unique id of this session
func (sm *SessionManager) SessionID() string {
	return sm.sessionID
}

// SessionDir returns the session directory path
func (sm *SessionManager) SessionDir() string {
	return sm.sessionDir
}

// PackedPath returns the output path for packed batches
func (sm *SessionManager) PackedPath() string {
	return filepath.Join(sm.sessionDir, "packed.jsonl")
}

// PairsPath returns the output path for unpacked tokenized pairs
func (sm *SessionManager) PairsPath() string {
	return filepath.Join(sm.sessionDir, "pairs.jsonl")
}

// LogPath returns the session log file path
func (sm *SessionManager) LogPath() string {
	return filepath.Join(sm.sessionDir, "prefpack.log")
}

// BackupConfig copies the active config file into the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config for backup: %w", err)
	}
	backupPath := filepath.Join(sm.sessionDir, "config.toml")
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}
	sm.logger.Debug("Backed up config", "path", backupPath)
	return nil
}

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	stateDir  = ".kiosk"
	stateFile = "current_session"
)

// stateFilePath returns the current-session marker path under baseDir
// (normally the user's home directory), creating baseDir/.kiosk if needed.
func stateFilePath(baseDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("base directory is required")
	}

	dir := filepath.Join(baseDir, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(dir, stateFile), nil
}

// LoadCurrentSessionID reads the session the chat client last used.
// A missing or empty marker file yields (nil, nil); that is how a fresh
// machine looks, not an error.
func LoadCurrentSessionID(baseDir string) (*uuid.UUID, error) {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session id in state file: %w", err)
	}
	return &id, nil
}

// SaveCurrentSessionID marks the session the chat client should resume.
func SaveCurrentSessionID(baseDir string, id uuid.UUID) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(id.String()), 0o644); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// ClearCurrentSessionID forgets the resumable session. Idempotent.
func ClearCurrentSessionID(baseDir string) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session state: %w", err)
	}
	return nil
}

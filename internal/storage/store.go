package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists the snapshot document as a single JSON file. A save
// writes a temporary file and renames it into place so readers never observe
// a half-written document.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore wires a snapshot file path into a FileStore.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Path returns the snapshot file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot document. On an uninitialised store it persists a
// fresh empty snapshot first, so subsequent loads are idempotent.
func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			snapshot := NewSnapshot(time.Now().UTC())
			if saveErr := f.Save(snapshot); saveErr != nil {
				return nil, saveErr
			}
			f.logger.Info().Str("path", f.path).Msg("snapshot file created")
			return snapshot, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.Items == nil {
		snapshot.Items = make(map[string]*ItemSeries)
	}
	if snapshot.Alerts == nil {
		snapshot.Alerts = make([]*Alert, 0)
	}
	return &snapshot, nil
}

// Save durably replaces the prior document.
func (f *FileStore) Save(snapshot *Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Size reports the on-disk size of the snapshot document in bytes. A store
// that was never saved reports zero.
func (f *FileStore) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}
	return info.Size(), nil
}

// Backup writes a timestamped copy of the current snapshot next to it and
// returns the backup path.
func (f *FileStore) Backup() (string, error) {
	snapshot, err := f.Load()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(time.Now().UTC().Format(time.RFC3339))
	ext := filepath.Ext(f.path)
	backupPath := strings.TrimSuffix(f.path, ext) + "_backup_" + stamp + ext

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	f.logger.Info().Str("path", backupPath).Msg("snapshot backup written")
	return backupPath, nil
}

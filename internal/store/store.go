package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"EconSync/internal/model"
)

// ErrCorrupt is matched by errors.Is for any *CorruptError.
var ErrCorrupt = errors.New("corrupt data file")

// CorruptError reports a data file that exists but cannot be decoded.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *CorruptError) Unwrap() error { return e.Err }
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// Store persists series as JSON arrays of observations under a single directory.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the full path of a data file.
func (s *Store) Path(file string) string { return filepath.Join(s.Dir, file) }

// EnsureDir creates the data directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// Exists reports whether the data file is present.
func (s *Store) Exists(file string) bool {
	_, err := os.Stat(s.Path(file))
	return err == nil
}

// Load reads a series. A missing file yields an empty series.
func (s *Store) Load(file string) ([]model.Observation, error) {
	path := s.Path(file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var obs []model.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return obs, nil
}

// LoadOrQuarantine loads a series; a corrupt file is renamed to <file>.bak and
// an empty series is returned in its place.
func (s *Store) LoadOrQuarantine(file string) ([]model.Observation, error) {
	obs, err := s.Load(file)
	if err == nil || !errors.Is(err, ErrCorrupt) {
		return obs, err
	}
	backup, qerr := s.Quarantine(file)
	if qerr != nil {
		return nil, errors.Join(err, qerr)
	}
	logrus.WithFields(logrus.Fields{
		"file":   file,
		"backup": backup,
	}).Warnf("data file corrupted, starting fresh: %v", err)
	return nil, nil
}

// Quarantine renames a data file to <file>.bak and returns the backup path.
func (s *Store) Quarantine(file string) (string, error) {
	path := s.Path(file)
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	return backup, nil
}

// Save writes a series atomically: the data goes to <file>.tmp first and is then
// renamed over the target, so a failed write never clobbers the previous file.
func (s *Store) Save(file string, obs []model.Observation) error {
	if obs == nil {
		obs = []model.Observation{}
	}
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	return s.writeAtomic(file, data)
}

func (s *Store) writeAtomic(file string, data []byte) error {
	path := s.Path(file)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Backup copies a data file to <file>.bak_YYYYMMDDHHMMSS and returns the copy's path.
// It returns "" without error when the file does not exist.
func (s *Store) Backup(file string, now time.Time) (string, error) {
	path := s.Path(file)
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	backup := fmt.Sprintf("%s.bak_%s", path, now.Format("20060102150405"))
	dst, err := os.Create(backup)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	return backup, nil
}

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"EconSync/internal/model"
)

// Check verifies that a data file decodes as a series. Missing files are fine.
func (s *Store) Check(file string) error {
	_, err := s.Load(file)
	return err
}

// Repair tries to recover a corrupt data file. The original is kept as <file>.bak.
// Only truncated arrays are handled: a missing closing bracket is appended and the
// result is accepted if it decodes. It reports whether the file was rewritten.
func (s *Store) Repair(file string) (bool, error) {
	if err := s.Check(file); err == nil {
		return false, nil
	}
	backup, err := s.Quarantine(file)
	if err != nil {
		return false, err
	}
	content, err := os.ReadFile(backup)
	if err != nil {
		return false, fmt.Errorf("read backup: %w", err)
	}

	content = bytes.TrimSpace(content)
	content = bytes.TrimRight(content, ",")
	if !bytes.HasSuffix(content, []byte("]")) {
		content = append(content, "\n]"...)
	}
	var obs []model.Observation
	if err := json.Unmarshal(content, &obs); err != nil {
		return false, fmt.Errorf("repair %s: %w", file, err)
	}
	if err := s.Save(file, obs); err != nil {
		return false, err
	}
	return true, nil
}

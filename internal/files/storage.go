// Package files manages the on-disk staging areas for attachment
// transfer, one directory per direction, paths keyed by the source
// system's file id so re-downloads overwrite instead of colliding.
// Staged files are never cleaned up.
package files

import (
	"fmt"
	"os"
	"path/filepath"
)

type Storage struct {
	hubspotDir string // files pulled from hubspot, keyed by hs file id
	procoreDir string // files pulled from procore, keyed by procore doc id
}

func NewStorage(hubspotDir, procoreDir string) (*Storage, error) {
	for _, dir := range []string{hubspotDir, procoreDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage mkdir %s: %w", dir, err)
		}
	}
	return &Storage{hubspotDir: hubspotDir, procoreDir: procoreDir}, nil
}

func (s *Storage) HubSpotPath(hsID string) string {
	return filepath.Join(s.hubspotDir, hsID)
}

func (s *Storage) ProcorePath(procoreID string) string {
	return filepath.Join(s.procoreDir, procoreID)
}

func (s *Storage) WriteHubSpotFile(hsID string, data []byte) (string, error) {
	p := s.HubSpotPath(hsID)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("storage write %s: %w", p, err)
	}
	return p, nil
}

func (s *Storage) WriteProcoreFile(procoreID string, data []byte) (string, error) {
	p := s.ProcorePath(procoreID)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("storage write %s: %w", p, err)
	}
	return p, nil
}

func (s *Storage) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

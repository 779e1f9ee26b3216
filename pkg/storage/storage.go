package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Storage struct{}

// SaveFile writes content to filePath, creating parent directories as needed.
func (s *Storage) SaveFile(filePath string, content []byte) error {
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

func (s *Storage) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// RemoveFile deletes filePath. It reports whether a file was removed; a
// missing file is not an error.
func (s *Storage) RemoveFile(filePath string) (bool, error) {
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("error removing file: %w", err)
	}
	return true, nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResolvePath turns a file:// URL or a bare (possibly ~-prefixed) path into a
// local filesystem path. Callers decide on scheme support before calling.
func ResolvePath(raw string) (string, error) {
	if strings.HasPrefix(strings.ToLower(raw), "file:") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid file URL %q: %w", raw, err)
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if u.Host != "" && u.Host != "localhost" {
			// file://~/x and file://relative/x put the first segment in Host.
			path = u.Host + path
		}
		if path == "" {
			return "", fmt.Errorf("empty file URL %q", raw)
		}
		return ExpandHome(path), nil
	}
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	return ExpandHome(raw), nil
}

package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory based on the host OS.
// It prefers standard locations when available and falls back to a dotdir
// in the user's home directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "gemdrive")
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") {
		return "/var/lib/gemdrive"
	}

	// macOS: ~/Library/Application Support/Gemdrive
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Gemdrive")
	}

	// Windows: %USERPROFILE%/AppData/Local/Gemdrive
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Gemdrive")
	}

	// Fallback: ~/.gemdrive
	return filepath.Join(homeDir, ".gemdrive")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// StoreDir is the Pebble directory under dataDir that holds the mutation log.
func StoreDir(dataDir string) string { return filepath.Join(dataDir, "store") }

// ResolveFilesDir returns c.FilesDir, defaulting to <dataDir>/files.
func (c Config) ResolveFilesDir(dataDir string) string {
	if c.FilesDir != "" {
		return c.FilesDir
	}
	return filepath.Join(dataDir, "files")
}

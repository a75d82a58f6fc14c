// Package pathutil converts between paths as written in configuration files
// and the absolute paths used internally.
//
// Sources are always opened through absolute paths so a reload behaves the
// same regardless of the working directory. Paths shown back to the user
// (config show, status output) are made relative to the config directory.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/srv/bot/lists/cities.txt", "/srv/bot") → "lists/cities.txt"
//   - ToRelative("/etc/luis/app.json", "/srv/bot") → "/etc/luis/app.json" (outside root)
//   - ToRelative("lists/cities.txt", "/srv/bot") → "lists/cities.txt" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	// Outside the root the absolute path is clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}

// ToAbsolute resolves path against baseDir unless it is already absolute.
// Glob metacharacters are preserved.
//
// Examples:
//   - ToAbsolute("lists/**/*.txt", "/srv/bot") → "/srv/bot/lists/**/*.txt"
//   - ToAbsolute("/etc/luis/app.json", "/srv/bot") → "/etc/luis/app.json"
func ToAbsolute(path, baseDir string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if baseDir == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(baseDir, path)
}

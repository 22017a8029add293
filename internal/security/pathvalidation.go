// Package security guards filesystem paths derived from request
// input, such as dataset directories named in analyze requests.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory rejects paths that resolve outside
// safeDir, including escapes routed through symlinks. Paths that do
// not exist yet are canonicalized through their nearest existing
// parent, so a symlinked ancestor cannot carry the path out of
// safeDir.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("resolve safe directory: %w", err)
	}

	canonicalPath := absPath
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		canonicalPath = resolved
	} else {
		checkPath := absPath
		for {
			parentDir := filepath.Dir(checkPath)
			if parentDir == checkPath {
				break
			}
			if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
				relToParent, _ := filepath.Rel(parentDir, absPath)
				canonicalPath = filepath.Join(resolved, relToParent)
				break
			}
			checkPath = parentDir
		}
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("resolve safe directory symlinks: %w", err)
	}

	relPath, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}

	return nil
}

// ValidateDatasetDir checks that dataset names an existing directory
// inside dataRoot and returns its cleaned path. Relative dataset
// names are resolved against dataRoot.
func ValidateDatasetDir(dataset, dataRoot string) (string, error) {
	if dataset == "" {
		return "", fmt.Errorf("dataset path is empty")
	}

	path := dataset
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataRoot, dataset)
	}
	if err := ValidatePathWithinDirectory(path, dataRoot); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("dataset path %s is not a directory", path)
	}

	return filepath.Clean(path), nil
}

// SanitizeFilename makes a safe filename from an arbitrary string,
// used when embedding run and dataset identifiers into download
// names. Characters outside ASCII letters, digits, dot, underscore
// and dash collapse into single underscores; the result is capped at
// 128 characters.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// Package workspace locates devcontainer workspace roots and tracks which
// containers are bound to them.
package workspace

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fgrehm/moor/internal/session"
)

// ErrNoDevContainer is returned when no devcontainer configuration is found
// walking up from the start directory.
var ErrNoDevContainer = errors.New("no devcontainer configuration found")

// ErrRemotePath is returned when resolution is attempted from a path that is
// itself a remote session address. Nesting containers inside remote sessions
// is not supported.
var ErrRemotePath = errors.New("cannot resolve a workspace from a remote path")

// ResolveResult holds the outcome of workspace resolution.
type ResolveResult struct {
	// Root is the absolute path to the workspace root directory.
	Root string

	// ConfigPath is the absolute path to the devcontainer.json file.
	ConfigPath string

	// RelativeConfigPath is the config path relative to Root.
	RelativeConfigPath string

	// WorkspaceID is the derived workspace identifier.
	WorkspaceID string
}

// Resolve walks up from startPath looking for a devcontainer configuration.
// In each directory the nested candidate (.devcontainer/devcontainer.json)
// takes priority over the flat one (.devcontainer.json). Returns the
// directory containing the match as the workspace root.
func Resolve(startPath string) (*ResolveResult, error) {
	if session.IsRemote(startPath) {
		return nil, fmt.Errorf("%w: %s", ErrRemotePath, startPath)
	}

	absDir, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}

	dir := absDir
	for {
		configPath, err := findConfig(dir)
		if err != nil {
			return nil, fmt.Errorf("searching for devcontainer config: %w", err)
		}
		if configPath != "" {
			relPath, err := filepath.Rel(dir, configPath)
			if err != nil {
				return nil, fmt.Errorf("computing relative config path: %w", err)
			}
			return &ResolveResult{
				Root:               dir,
				ConfigPath:         configPath,
				RelativeConfigPath: relPath,
				WorkspaceID:        Slugify(filepath.Base(dir)),
			}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root.
			return nil, ErrNoDevContainer
		}
		dir = parent
	}
}

// findConfig checks a single directory for a devcontainer config file.
// Search order:
//  1. .devcontainer/devcontainer.json
//  2. .devcontainer.json
//  3. .devcontainer/{subfolder}/devcontainer.json (one level deep)
//
// Returns the absolute path to the config file, or empty string if not found.
func findConfig(dir string) (string, error) {
	p := filepath.Join(dir, ".devcontainer", "devcontainer.json")
	if fileExists(p) {
		return p, nil
	}

	p = filepath.Join(dir, ".devcontainer.json")
	if fileExists(p) {
		return p, nil
	}

	entries, err := os.ReadDir(filepath.Join(dir, ".devcontainer"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p = filepath.Join(dir, ".devcontainer", entry.Name(), "devcontainer.json")
		if fileExists(p) {
			return p, nil
		}
	}

	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ContainsPath reports whether path is root itself or a descendant of root.
// Both are cleaned first, so trailing slashes do not matter. Siblings with a
// shared name prefix (root=/a/b vs /a/bc) do not match.
func ContainsPath(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify converts a project directory name into a valid workspace ID.
// Rules: lowercase, replace non-alphanumeric with hyphens, trim hyphens,
// truncate to 48 chars with hash suffix if longer.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		slug = "workspace"
	}

	const maxLen = 48
	if len(slug) > maxLen {
		hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))
		slug = slug[:40] + "-" + hash[:7]
	}

	return slug
}

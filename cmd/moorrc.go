package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// moorRC holds values loaded from a per-project .moorrc file.
type moorRC struct {
	Dir      string // project directory (same as --dir / -d)
	Engine   string // container engine override
	Dotfiles string // dotfiles repository override
}

// loadMoorRC reads a .moorrc file from cwd. Returns nil, nil if not found.
// Format: simple "key = value" pairs, lines starting with # are comments.
func loadMoorRC() (*moorRC, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(cwd, ".moorrc"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rc := &moorRC{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "dir":
			rc.Dir = strings.TrimSpace(val)
		case "engine":
			rc.Engine = strings.TrimSpace(val)
		case "dotfiles":
			rc.Dotfiles = strings.TrimSpace(val)
		}
	}
	return rc, scanner.Err()
}

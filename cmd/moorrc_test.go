package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

// chdir is a substitute for t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadMoorRC(t *testing.T) {
	dir := t.TempDir()
	content := `# project settings
dir = ./backend
engine = podman

dotfiles = https://example.com/dotfiles.git
not-a-key
`
	if err := os.WriteFile(filepath.Join(dir, ".moorrc"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	rc, err := loadMoorRC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc == nil {
		t.Fatal("rc = nil, want values")
	}
	if rc.Dir != "./backend" {
		t.Errorf("Dir = %q", rc.Dir)
	}
	if rc.Engine != "podman" {
		t.Errorf("Engine = %q", rc.Engine)
	}
	if rc.Dotfiles != "https://example.com/dotfiles.git" {
		t.Errorf("Dotfiles = %q", rc.Dotfiles)
	}
}

func TestLoadMoorRC_Missing(t *testing.T) {
	chdir(t, t.TempDir())

	rc, err := loadMoorRC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc != nil {
		t.Errorf("rc = %+v, want nil", rc)
	}
}

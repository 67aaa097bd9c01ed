package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fgrehm/moor/internal/config"
	"github.com/fgrehm/moor/internal/editor"
	"github.com/fgrehm/moor/internal/runner"
	"github.com/fgrehm/moor/internal/workspace"
)

// fakeEditor is an in-memory editor.Client recording everything moor does
// to it.
type fakeEditor struct {
	docs    []editor.Document
	saved   []string
	closed  []string
	opened  []string
	dropped []string
	saveErr map[string]error
}

func (f *fakeEditor) Documents(context.Context) ([]editor.Document, error) {
	return f.docs, nil
}

func (f *fakeEditor) Save(_ context.Context, id string) error {
	if err := f.saveErr[id]; err != nil {
		return err
	}
	f.saved = append(f.saved, id)
	return nil
}

func (f *fakeEditor) Close(_ context.Context, id string) error {
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeEditor) OpenBrowser(_ context.Context, path string) error {
	f.opened = append(f.opened, path)
	return nil
}

func (f *fakeEditor) DropConnection(_ context.Context, host string) error {
	f.dropped = append(f.dropped, host)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable stub at dir/name.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

// stubEngine puts a fake docker binary on PATH that answers inspection and
// removal the way the real engine does.
func stubEngine(t *testing.T, localFolder string, rmFails bool) {
	t.Helper()
	bin := t.TempDir()
	rmBody := `echo "$3"`
	if rmFails {
		rmBody = `echo "no such container" >&2; exit 1`
	}
	writeScript(t, bin, "docker", fmt.Sprintf(`case "$1 $2" in
"container inspect")
  echo '[{"Config":{"Labels":{"devcontainer.local_folder":"%s"}}}]'
  ;;
"rm -f")
  %s
  ;;
esac
`, localFolder, rmBody))
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// newProject creates a workspace root with a devcontainer config.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".devcontainer"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"name": "Test Project", "image": "ubuntu"}`
	if err := os.WriteFile(filepath.Join(dir, ".devcontainer", "devcontainer.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newController(t *testing.T, cfg *config.Config, ed editor.Client) (*Controller, *workspace.Store) {
	t.Helper()
	store, err := workspace.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	logger := testLogger()
	return New(cfg, runner.New(logger), ed, store, logger), store
}

func waitOutcome(t *testing.T, done <-chan UpOutcome) UpOutcome {
	t.Helper()
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for up outcome")
		return UpOutcome{}
	}
}

const successPayload = `{"outcome":"success","containerId":"abc123","remoteUser":"vscode","remoteWorkspaceFolder":"/workspace"}`

func TestUp_EndToEnd(t *testing.T) {
	root := newProject(t)
	cli := writeScript(t, t.TempDir(), "devcontainer", fmt.Sprintf(`echo 'step 1' >&2
printf '%s'
`, successPayload))

	ed := &fakeEditor{docs: []editor.Document{
		{ID: "1", Path: filepath.Join(root, "main.go")},
		{ID: "2", Path: filepath.Join(root, "pkg", "x.go")},
		{ID: "3", Path: "/elsewhere/y.go"},
	}}

	cfg := &config.Config{Engine: "podman", Command: []string{cli}}
	ctrl, store := newController(t, cfg, ed)

	start, err := ctrl.Up(context.Background(), root)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if start.ConfigName != "Test Project" {
		t.Errorf("ConfigName = %q", start.ConfigName)
	}

	outcome := waitOutcome(t, start.Done)
	if outcome.Err != nil {
		t.Fatalf("outcome err: %v", outcome.Err)
	}
	if got := outcome.Handle.Address(); got != "podman:vscode@abc123:/workspace" {
		t.Errorf("Address() = %q", got)
	}
	if !slices.Equal(ed.opened, []string{"podman:vscode@abc123:/workspace"}) {
		t.Errorf("opened = %v", ed.opened)
	}
	if outcome.ClosedDocs != 2 || !slices.Equal(ed.closed, []string{"1", "2"}) {
		t.Errorf("ClosedDocs = %d, closed = %v", outcome.ClosedDocs, ed.closed)
	}

	// The session is registered for later teardown.
	sess, err := store.FindByContainer("abc123")
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if sess.Root != root || sess.Engine != "podman" {
		t.Errorf("session = %+v", sess)
	}

	// The build's stderr landed on the log surface.
	data, err := os.ReadFile(start.LogPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "step 1") {
		t.Errorf("log = %q, want build stderr", data)
	}
}

func TestUp_BuildFailure(t *testing.T) {
	root := newProject(t)
	cli := writeScript(t, t.TempDir(), "devcontainer", `printf '{"outcome":"failure"}'
exit 1
`)

	ed := &fakeEditor{docs: []editor.Document{
		{ID: "1", Path: filepath.Join(root, "main.go")},
	}}
	cfg := &config.Config{Engine: "docker", Command: []string{cli}}
	ctrl, _ := newController(t, cfg, ed)

	start, err := ctrl.Up(context.Background(), root)
	if err != nil {
		t.Fatalf("up: %v", err)
	}

	outcome := waitOutcome(t, start.Done)
	if outcome.Err == nil {
		t.Fatal("expected a failed outcome")
	}
	if !strings.Contains(outcome.Err.Error(), `{"outcome":"failure"}`) {
		t.Errorf("err = %v, want literal payload included", outcome.Err)
	}
	if len(ed.opened) != 0 {
		t.Error("no browser may be opened on failure")
	}
	if len(ed.closed) != 0 {
		t.Error("no documents may be closed on failure")
	}
}

func TestUp_SubprocessCrash(t *testing.T) {
	root := newProject(t)
	cli := writeScript(t, t.TempDir(), "devcontainer", `echo "boom" >&2
exit 7
`)

	cfg := &config.Config{Engine: "docker", Command: []string{cli}}
	ctrl, _ := newController(t, cfg, &fakeEditor{})

	start, err := ctrl.Up(context.Background(), root)
	if err != nil {
		t.Fatalf("up: %v", err)
	}

	outcome := waitOutcome(t, start.Done)
	var exitErr *runner.ExitError
	if !errors.As(outcome.Err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", outcome.Err)
	}
	if exitErr.Code != 7 {
		t.Errorf("Code = %d, want 7", exitErr.Code)
	}
}

func TestUp_NoConfig(t *testing.T) {
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, _ := newController(t, cfg, &fakeEditor{})

	_, err := ctrl.Up(context.Background(), t.TempDir())
	if !errors.Is(err, workspace.ErrNoDevContainer) {
		t.Fatalf("err = %v, want ErrNoDevContainer", err)
	}
}

func TestUp_RemotePath(t *testing.T) {
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, _ := newController(t, cfg, &fakeEditor{})

	_, err := ctrl.Up(context.Background(), "podman:u@abc:/workspace")
	if !errors.Is(err, workspace.ErrRemotePath) {
		t.Fatalf("err = %v, want ErrRemotePath", err)
	}
}

func TestUp_SecondCallWhilePending(t *testing.T) {
	root := newProject(t)
	cli := writeScript(t, t.TempDir(), "devcontainer", fmt.Sprintf(`sleep 1
printf '%s'
`, successPayload))

	cfg := &config.Config{Engine: "docker", Command: []string{cli}}
	ctrl, _ := newController(t, cfg, &fakeEditor{})

	start, err := ctrl.Up(context.Background(), root)
	if err != nil {
		t.Fatalf("first up: %v", err)
	}

	if _, err := ctrl.Up(context.Background(), root); !errors.Is(err, workspace.ErrUpInProgress) {
		t.Fatalf("second up err = %v, want ErrUpInProgress", err)
	}

	waitOutcome(t, start.Done)
}

func TestDown_EndToEnd(t *testing.T) {
	stubEngine(t, "/home/u/proj", false)

	ed := &fakeEditor{docs: []editor.Document{
		{ID: "1", Path: "docker:vscode@abc123:/workspace/a.go"},
		{ID: "2", Path: "docker:vscode@other:/workspace/b.go"},
		{ID: "3", Path: "/local/c.go"},
	}}

	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, store := newController(t, cfg, ed)

	err := store.Save(&workspace.Session{
		WorkspaceID: "proj",
		Root:        "/home/u/proj",
		Engine:      "docker",
		ContainerID: "abc123",
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	report, err := ctrl.Down(context.Background(), "/home/u/proj/src")
	if err != nil {
		t.Fatalf("down: %v", err)
	}

	if report.ContainerID != "abc123" {
		t.Errorf("ContainerID = %q", report.ContainerID)
	}
	if report.LocalFolder != "/home/u/proj" {
		t.Errorf("LocalFolder = %q", report.LocalFolder)
	}
	if report.ClosedDocs != 1 || !slices.Equal(ed.closed, []string{"1"}) {
		t.Errorf("ClosedDocs = %d, closed = %v", report.ClosedDocs, ed.closed)
	}
	if !slices.Equal(ed.opened, []string{"/home/u/proj"}) {
		t.Errorf("opened = %v", ed.opened)
	}
	if !slices.Equal(ed.dropped, []string{"abc123"}) {
		t.Errorf("dropped = %v", ed.dropped)
	}
	if _, err := store.FindByContainer("abc123"); !errors.Is(err, workspace.ErrSessionNotFound) {
		t.Error("session record should be removed")
	}
}

func TestDown_ByRemoteAddress(t *testing.T) {
	stubEngine(t, "/home/u/proj", false)

	ed := &fakeEditor{docs: []editor.Document{
		{ID: "1", Path: "docker:vscode@abc123:/workspace/a.go"},
	}}
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, _ := newController(t, cfg, ed)

	report, err := ctrl.Down(context.Background(), "docker:vscode@abc123:/workspace/a.go")
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if report.ContainerID != "abc123" || !report.Released {
		t.Errorf("report = %+v", report)
	}
}

func TestDown_NotInDevcontainer(t *testing.T) {
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, _ := newController(t, cfg, &fakeEditor{})

	_, err := ctrl.Down(context.Background(), "/some/unrelated/path")
	if !errors.Is(err, ErrNotInDevcontainer) {
		t.Fatalf("err = %v, want ErrNotInDevcontainer", err)
	}
}

func TestDown_RemovalFailure(t *testing.T) {
	stubEngine(t, "/home/u/proj", true)

	ed := &fakeEditor{}
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, store := newController(t, cfg, ed)

	err := store.Save(&workspace.Session{
		WorkspaceID: "proj",
		Root:        "/home/u/proj",
		Engine:      "docker",
		ContainerID: "abc123",
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	report, err := ctrl.Down(context.Background(), "/home/u/proj")
	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if !strings.Contains(exitErr.Stderr, "no such container") {
		t.Errorf("Stderr = %q", exitErr.Stderr)
	}
	// Editor cleanup is not rolled back on removal failure.
	if !report.Released {
		t.Error("connection should have been released before removal")
	}
	if !slices.Equal(ed.dropped, []string{"abc123"}) {
		t.Errorf("dropped = %v", ed.dropped)
	}
}

func TestDown_PartialSaveFailureStillTearsDown(t *testing.T) {
	stubEngine(t, "/home/u/proj", false)

	ed := &fakeEditor{
		docs: []editor.Document{
			{ID: "1", Path: "docker:vscode@abc123:/workspace/a.go"},
			{ID: "2", Path: "docker:vscode@abc123:/workspace/b.go"},
		},
		saveErr: map[string]error{"1": fmt.Errorf("read-only buffer")},
	}
	cfg := &config.Config{Engine: "docker", Command: []string{"devcontainer"}}
	ctrl, store := newController(t, cfg, ed)

	err := store.Save(&workspace.Session{
		WorkspaceID: "proj",
		Root:        "/home/u/proj",
		Engine:      "docker",
		ContainerID: "abc123",
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	report, err := ctrl.Down(context.Background(), "/home/u/proj")
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if report.CleanupErr == nil {
		t.Error("expected the save failure to be reported")
	}
	if report.ClosedDocs != 1 || !slices.Equal(ed.closed, []string{"2"}) {
		t.Errorf("ClosedDocs = %d, closed = %v", report.ClosedDocs, ed.closed)
	}
	if report.ContainerID != "abc123" {
		t.Errorf("removal should still run, ContainerID = %q", report.ContainerID)
	}
}

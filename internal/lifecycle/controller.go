// Package lifecycle orchestrates the two devcontainer session flows: up
// (locate config, run the build tool, bind the editor session) and down
// (persist and close remote documents, release the session, remove the
// container).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fgrehm/moor/internal/config"
	"github.com/fgrehm/moor/internal/devcontainer"
	"github.com/fgrehm/moor/internal/editor"
	"github.com/fgrehm/moor/internal/runner"
	"github.com/fgrehm/moor/internal/session"
	"github.com/fgrehm/moor/internal/workspace"
)

// ErrNotInDevcontainer is returned when teardown is requested from a
// context with no associated container session: neither a remote document
// address nor a path inside a registered workspace.
var ErrNotInDevcontainer = errors.New("not inside a devcontainer session")

// Controller drives session lifecycle flows. Each flow invocation computes
// its state fresh from the live environment; nothing is cached between
// calls.
type Controller struct {
	cfg    *config.Config
	runner *runner.Runner
	editor editor.Client
	binder *session.Binder
	store  *workspace.Store
	logger *slog.Logger
}

// New creates a Controller. The configuration is explicit so multiple
// controllers with different engines can coexist.
func New(cfg *config.Config, r *runner.Runner, ed editor.Client, store *workspace.Store, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		runner: r,
		editor: ed,
		binder: session.NewBinder(ed, logger),
		store:  store,
		logger: logger,
	}
}

// UpOutcome is the terminal state of an up flow, delivered on the Done
// channel once the build subprocess has exited.
type UpOutcome struct {
	// Handle is the bound session; nil when Err is set.
	Handle *session.Handle

	// ClosedDocs is how many local documents under the workspace root were
	// saved and closed after binding.
	ClosedDocs int

	// CleanupErr collects local document save/close failures. The session
	// is bound regardless; a broken buffer must not undo the container.
	CleanupErr error

	// Err is the terminal failure of the flow, if any.
	Err error
}

// UpStart describes an up flow that has been spawned. The build runs in the
// background; the final outcome arrives on Done exactly once.
type UpStart struct {
	// Resolve is the located workspace.
	Resolve *workspace.ResolveResult

	// ConfigName is the devcontainer's display name, if the config has one.
	ConfigName string

	// LogPath is where the build's error stream is being written.
	LogPath string

	// Done delivers the flow outcome once the subprocess exits.
	Done <-chan UpOutcome
}

// Up starts the up flow from startPath: locate the workspace root, spawn
// the devcontainer build, and return without blocking. Location and spawn
// failures are returned synchronously; everything after the spawn is
// reported through UpStart.Done.
func (c *Controller) Up(ctx context.Context, startPath string) (*UpStart, error) {
	rr, err := workspace.Resolve(startPath)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("up", "root", rr.Root, "config", rr.ConfigPath)

	unlock, err := c.store.LockUp(rr.WorkspaceID)
	if err != nil {
		return nil, err
	}

	logFile, err := c.store.OpenLog(rr.WorkspaceID)
	if err != nil {
		unlock()
		return nil, err
	}

	name, err := devcontainer.PeekName(rr.ConfigPath)
	if err != nil {
		c.logger.Debug("could not read devcontainer name", "error", err)
	}

	argv := devcontainer.UpCommand(devcontainer.UpOptions{
		Command:            c.cfg.Command,
		Engine:             c.cfg.Engine,
		WorkspaceFolder:    rr.Root,
		DotfilesRepository: c.cfg.DotfilesRepository,
	})

	fmt.Fprintf(logFile, "--- moor up %s (%s)\n", rr.Root, time.Now().UTC().Format(time.RFC3339))

	done := make(chan UpOutcome, 1)
	err = c.runner.Start(ctx, runner.StartSpec{
		Argv:   argv,
		Stderr: logFile,
		OnExit: func(stdout []byte, runErr error) {
			defer unlock()
			defer func() { _ = logFile.Close() }()
			done <- c.finishUp(ctx, rr, stdout, runErr)
		},
	})
	if err != nil {
		unlock()
		_ = logFile.Close()
		return nil, err
	}

	return &UpStart{
		Resolve:    rr,
		ConfigName: name,
		LogPath:    c.store.LogPath(rr.WorkspaceID),
		Done:       done,
	}, nil
}

// finishUp runs the post-build half of the up flow: parse, bind, reclaim
// local editor state, record the session.
func (c *Controller) finishUp(ctx context.Context, rr *workspace.ResolveResult, stdout []byte, runErr error) UpOutcome {
	result, parseErr := devcontainer.ParseUpResult(stdout)
	if parseErr != nil {
		// A crashed build usually emits no payload at all; prefer the
		// subprocess failure over the parse noise it caused.
		if runErr != nil {
			return UpOutcome{Err: runErr}
		}
		return UpOutcome{Err: parseErr}
	}

	handle, err := c.binder.Bind(ctx, c.cfg.Engine, result)
	if err != nil {
		return UpOutcome{Err: err}
	}

	// The remote-backed documents take over now; reclaim the local ones.
	docs, err := editor.LocalDocuments(ctx, c.editor, rr.Root)
	if err != nil {
		c.logger.Warn("could not enumerate local documents", "error", err)
		docs = nil
	}
	closed, cleanupErr := editor.SaveAndClose(ctx, c.editor, docs)
	if cleanupErr != nil {
		c.logger.Warn("some local documents could not be closed", "error", cleanupErr)
	}

	sess := &workspace.Session{
		WorkspaceID:     rr.WorkspaceID,
		Root:            rr.Root,
		Engine:          handle.Engine,
		RemoteUser:      handle.User,
		ContainerID:     handle.ContainerID,
		WorkspaceFolder: handle.WorkspaceFolder,
		CreatedAt:       time.Now(),
	}
	if err := c.store.Save(sess); err != nil {
		c.logger.Warn("could not record session", "error", err)
	}

	return UpOutcome{Handle: handle, ClosedDocs: closed, CleanupErr: cleanupErr}
}

// DownReport describes a completed (or partially completed) down flow.
type DownReport struct {
	// ContainerID is the removed container's identity as echoed by the
	// engine, trimmed.
	ContainerID string

	// LocalFolder is the local workspace folder recovered from the
	// container's labels, where a browser was opened.
	LocalFolder string

	// ClosedDocs is how many remote documents were saved and closed.
	ClosedDocs int

	// CleanupErr collects remote document save/close failures; teardown
	// proceeded regardless.
	CleanupErr error

	// Released reports whether the remote connection was dropped. It is
	// true even when container removal subsequently failed.
	Released bool
}

// Down tears down the session identified by ref: a remote document address
// ("engine:user@host:dir"), or a local path inside a registered workspace.
// Editor-side cleanup is not rolled back when container removal fails; the
// error is returned alongside the partial report.
func (c *Controller) Down(ctx context.Context, ref string) (*DownReport, error) {
	containerID, engine, workspaceID, err := c.identifySession(ref)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("down", "container", containerID, "engine", engine)

	report := &DownReport{}

	docs, err := editor.RemoteDocuments(ctx, c.editor, containerID)
	if err != nil {
		return nil, err
	}
	report.ClosedDocs, report.CleanupErr = editor.SaveAndClose(ctx, c.editor, docs)
	if report.CleanupErr != nil {
		c.logger.Warn("some remote documents could not be closed", "error", report.CleanupErr)
	}

	// Give the user a local landing point before the remote session goes
	// away.
	out, err := c.runner.Run(ctx, devcontainer.InspectCommand(engine, containerID))
	if err != nil {
		return report, err
	}
	labels, err := devcontainer.ParseInspectLabels(out)
	if err != nil {
		return report, err
	}
	localFolder, err := devcontainer.LocalFolder(labels)
	if err != nil {
		return report, err
	}
	report.LocalFolder = localFolder

	if err := c.editor.OpenBrowser(ctx, localFolder); err != nil {
		return report, fmt.Errorf("opening local workspace: %w", err)
	}
	if err := c.binder.Release(ctx, containerID); err != nil {
		return report, err
	}
	report.Released = true

	if workspaceID != "" {
		if err := c.store.Delete(workspaceID); err != nil {
			c.logger.Warn("could not remove session record", "error", err)
		}
	}

	out, err = c.runner.Run(ctx, devcontainer.RemoveCommand(engine, containerID))
	if err != nil {
		return report, err
	}
	report.ContainerID = strings.TrimSpace(string(out))
	return report, nil
}

// SessionStatus pairs a registered session with the container's probed
// runtime state.
type SessionStatus struct {
	Session *workspace.Session

	// State is the engine-reported container state, or "gone" when the
	// container no longer exists.
	State string
}

// Sessions lists all registered sessions, probing each container's state
// through the engine.
func (c *Controller) Sessions(ctx context.Context) ([]SessionStatus, error) {
	sessions, err := c.store.List()
	if err != nil {
		return nil, err
	}

	statuses := make([]SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		status := SessionStatus{Session: sess, State: "gone"}
		out, err := c.runner.Run(ctx, devcontainer.InspectCommand(sess.Engine, sess.ContainerID))
		if err == nil {
			if state, serr := devcontainer.ParseInspectState(out); serr == nil {
				status.State = state
			}
		} else {
			c.logger.Debug("inspect failed", "container", sess.ContainerID, "error", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// identifySession resolves what to tear down from ref. Returns the
// container identity, the engine to drive, and the registry key to clear
// (empty when the session was never registered).
func (c *Controller) identifySession(ref string) (containerID, engine, workspaceID string, err error) {
	if handle, ok := session.ParseAddress(ref); ok {
		engine = handle.Engine
		containerID = handle.ContainerID
		if sess, ferr := c.store.FindByContainer(containerID); ferr == nil {
			workspaceID = sess.WorkspaceID
		}
		return containerID, engine, workspaceID, nil
	}

	sess, ferr := c.store.FindByPath(ref)
	if ferr != nil {
		if errors.Is(ferr, workspace.ErrSessionNotFound) {
			return "", "", "", fmt.Errorf("%w: %s", ErrNotInDevcontainer, ref)
		}
		return "", "", "", ferr
	}
	return sess.ContainerID, sess.Engine, sess.WorkspaceID, nil
}

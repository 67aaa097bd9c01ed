package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fgrehm/moor/internal/devcontainer"
)

// Opener is the slice of the editor boundary the binder needs: opening a
// directory browser at a path (local or remote address) and dropping a
// remote connection.
type Opener interface {
	OpenBrowser(ctx context.Context, path string) error
	DropConnection(ctx context.Context, host string) error
}

// BuildFailedError is returned when the devcontainer CLI reports an outcome
// other than success. It carries the full result for diagnostics.
type BuildFailedError struct {
	Result *devcontainer.BuildResult
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("devcontainer build failed: outcome %q: %s", e.Result.Outcome, e.Result.Raw)
}

// Binder establishes and releases the mapping from a container identity to
// a live remote editing session.
type Binder struct {
	opener Opener
	logger *slog.Logger
}

// NewBinder creates a Binder that opens sessions through the given opener.
func NewBinder(opener Opener, logger *slog.Logger) *Binder {
	return &Binder{opener: opener, logger: logger}
}

// Bind turns a successful build result into a live remote session by
// opening a browser at the container's workspace folder. Any outcome other
// than success yields a BuildFailedError and the opener is not touched.
func (b *Binder) Bind(ctx context.Context, engine string, result *devcontainer.BuildResult) (*Handle, error) {
	if !result.Success() {
		return nil, &BuildFailedError{Result: result}
	}

	handle := &Handle{
		Engine:          engine,
		User:            result.RemoteUser,
		ContainerID:     result.ContainerID,
		WorkspaceFolder: result.RemoteWorkspaceFolder,
	}

	b.logger.Debug("binding session", "address", handle.Address())
	if err := b.opener.OpenBrowser(ctx, handle.Address()); err != nil {
		return nil, fmt.Errorf("opening remote workspace: %w", err)
	}
	return handle, nil
}

// Release drops the remote connection for the given container. Releasing a
// connection that no longer exists is a no-op, not an error.
func (b *Binder) Release(ctx context.Context, containerID string) error {
	b.logger.Debug("releasing session", "container", containerID)
	if err := b.opener.DropConnection(ctx, containerID); err != nil {
		return fmt.Errorf("dropping remote connection: %w", err)
	}
	return nil
}

// Package session models the binding between a running devcontainer and the
// editor's remote-access layer. A session is addressed by a structured path
// of the form "engine:user@host:directory", e.g.
// "podman:vscode@abc123:/workspace", which the editor's remote subsystem
// knows how to open.
package session

import "strings"

// Handle identifies a live remote-access binding to a container.
type Handle struct {
	// Engine is the container engine ("docker" or "podman").
	Engine string

	// User is the user inside the container that remote access runs as.
	User string

	// ContainerID is the container identity, used as the remote host.
	ContainerID string

	// WorkspaceFolder is the absolute path inside the container where the
	// project is mounted.
	WorkspaceFolder string
}

// Address renders the handle as an "engine:user@host:directory" remote path.
func (h *Handle) Address() string {
	return h.Engine + ":" + h.User + "@" + h.ContainerID + ":" + h.WorkspaceFolder
}

// ParseAddress parses an "engine:user@host:directory" remote path. Returns
// false if s is not a well-formed remote address (e.g. a plain local path).
func ParseAddress(s string) (*Handle, bool) {
	engine, rest, ok := strings.Cut(s, ":")
	if !ok || engine == "" || strings.ContainsAny(engine, "/@") {
		return nil, false
	}

	user, rest, ok := strings.Cut(rest, "@")
	if !ok || user == "" || strings.Contains(user, "/") {
		return nil, false
	}

	host, dir, ok := strings.Cut(rest, ":")
	if !ok || host == "" || strings.Contains(host, "/") {
		return nil, false
	}

	// Remote workspace folders are always absolute.
	if !strings.HasPrefix(dir, "/") {
		return nil, false
	}

	return &Handle{
		Engine:          engine,
		User:            user,
		ContainerID:     host,
		WorkspaceFolder: dir,
	}, true
}

// IsRemote reports whether s looks like a remote session address rather
// than a local filesystem path.
func IsRemote(s string) bool {
	_, ok := ParseAddress(s)
	return ok
}

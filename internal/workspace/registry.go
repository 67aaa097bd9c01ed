package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ErrSessionNotFound is returned when no session is registered for a
// workspace or container.
var ErrSessionNotFound = errors.New("session not found")

// ErrUpInProgress is returned when another up invocation already holds the
// lock for a workspace root.
var ErrUpInProgress = errors.New("another up is already in progress for this workspace")

// Session records a live binding between a workspace root and a container,
// written when a session is bound and consulted (then removed) on teardown.
type Session struct {
	// WorkspaceID is the registry key, derived from the root directory name.
	WorkspaceID string `json:"workspaceID"`

	// Root is the absolute local workspace root.
	Root string `json:"root"`

	// Engine is the container engine the session was bound with.
	Engine string `json:"engine"`

	// RemoteUser is the user inside the container.
	RemoteUser string `json:"remoteUser"`

	// ContainerID is the bound container identity.
	ContainerID string `json:"containerID"`

	// WorkspaceFolder is the workspace path inside the container.
	WorkspaceFolder string `json:"remoteWorkspaceFolder"`

	// CreatedAt is when the session was bound.
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists session records on disk at a base directory, guarded by a
// file lock so concurrent moor processes do not clobber each other.
type Store struct {
	baseDir string
	lock    *flock.Flock
}

// NewStore creates a Store at the default location (~/.moor). The MOOR_HOME
// env var overrides the base directory.
func NewStore() (*Store, error) {
	baseDir := os.Getenv("MOOR_HOME")
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".moor")
	}
	return NewStoreAt(baseDir)
}

// NewStoreAt creates a Store with a custom base directory. Useful for testing.
func NewStoreAt(baseDir string) (*Store, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "sessions"), filepath.Join(baseDir, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &Store{
		baseDir: baseDir,
		lock:    flock.New(filepath.Join(baseDir, "sessions.lock")),
	}, nil
}

// Save writes a session record to disk.
func (s *Store) Save(sess *Session) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking session registry: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(s.sessionPath(sess.WorkspaceID), data, 0o644); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

// Load reads a session record by workspace ID.
func (s *Store) Load(workspaceID string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(workspaceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("reading session record: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session record. Deleting a missing record is a no-op.
func (s *Store) Delete(workspaceID string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking session registry: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.sessionPath(workspaceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session record: %w", err)
	}
	return nil
}

// List returns all registered sessions, sorted by workspace ID via the
// directory listing order.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// FindByContainer returns the session bound to the given container identity.
func (s *Store) FindByContainer(containerID string) (*Session, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.ContainerID == containerID {
			return sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// FindByPath returns the session whose workspace root contains the given
// local path.
func (s *Store) FindByPath(path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if ContainsPath(sess.Root, abs) {
			return sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// LockUp acquires the per-workspace up lock without blocking. It returns an
// unlock function, or ErrUpInProgress when another process holds the lock.
func (s *Store) LockUp(workspaceID string) (func(), error) {
	fl := flock.New(filepath.Join(s.baseDir, "sessions", workspaceID+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking workspace: %w", err)
	}
	if !ok {
		return nil, ErrUpInProgress
	}
	return func() { _ = fl.Unlock() }, nil
}

// LogPath returns the build log file path for a workspace.
func (s *Store) LogPath(workspaceID string) string {
	return filepath.Join(s.baseDir, "logs", workspaceID+".log")
}

// OpenLog opens (appending, creating if needed) the build log for a
// workspace. This is the persistently visible surface the asynchronous
// build's error stream is routed to.
func (s *Store) OpenLog(workspaceID string) (*os.File, error) {
	f, err := os.OpenFile(s.LogPath(workspaceID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening build log: %w", err)
	}
	return f, nil
}

func (s *Store) sessionPath(workspaceID string) string {
	return filepath.Join(s.baseDir, "sessions", workspaceID+".json")
}

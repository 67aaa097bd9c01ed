// Package editor defines moor's boundary to the interactive editor: the set
// of open documents, persisting and closing them, and opening directory
// browsers. The editor itself is an external collaborator reached through
// the Client interface; moor only filters, sequences and addresses.
package editor

import "context"

// Document is an open, possibly-modified buffer in the editor. A document
// with an empty Path has no identifiable backing file or directory listing
// and is never matched by the trackers.
type Document struct {
	// ID is the editor-assigned document handle.
	ID string `json:"id"`

	// Path is the backing path: a plain local path, or a remote session
	// address of the form "engine:user@host:dir".
	Path string `json:"path"`
}

// Client is the editor control surface. Implementations are expected to be
// used from a single flow at a time; moor never issues concurrent calls.
type Client interface {
	// Documents returns all currently open documents.
	Documents(ctx context.Context) ([]Document, error)

	// Save persists unsaved changes of a document.
	Save(ctx context.Context, id string) error

	// Close closes a document without saving.
	Close(ctx context.Context, id string) error

	// OpenBrowser opens a directory browser at the given path, which may
	// be local or a remote session address.
	OpenBrowser(ctx context.Context, path string) error

	// DropConnection invalidates any remote connection state for the given
	// host. Dropping a connection that does not exist is a no-op.
	DropConnection(ctx context.Context, host string) error
}

// Nop is a Client that tracks nothing and opens nothing, used when no
// editor socket is configured so moor still drives containers standalone.
type Nop struct{}

func (Nop) Documents(context.Context) ([]Document, error) { return nil, nil }
func (Nop) Save(context.Context, string) error            { return nil }
func (Nop) Close(context.Context, string) error           { return nil }
func (Nop) OpenBrowser(context.Context, string) error     { return nil }
func (Nop) DropConnection(context.Context, string) error  { return nil }

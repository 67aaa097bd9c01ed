package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/fgrehm/moor/internal/session"
	"github.com/fgrehm/moor/internal/workspace"
)

// LocalDocuments returns the open documents whose backing path is local and
// contained in root (root itself or a descendant). Documents without a
// backing path are excluded.
func LocalDocuments(ctx context.Context, c Client, root string) ([]Document, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var matched []Document
	for _, doc := range docs {
		if doc.Path == "" || session.IsRemote(doc.Path) {
			continue
		}
		if workspace.ContainsPath(root, doc.Path) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// RemoteDocuments returns the open documents backed by a remote path whose
// host identity equals host. Matching is exact string equality.
func RemoteDocuments(ctx context.Context, c Client, host string) ([]Document, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var matched []Document
	for _, doc := range docs {
		handle, ok := session.ParseAddress(doc.Path)
		if !ok {
			continue
		}
		if handle.ContainerID == host {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// SaveAndClose persists then closes every document in docs. A failure on
// one document does not stop processing of the rest; all failures are
// collected into the returned error. A document whose save fails is left
// open rather than closed with unsaved changes. Returns how many documents
// were closed.
func SaveAndClose(ctx context.Context, c Client, docs []Document) (int, error) {
	var errs []error
	closed := 0
	for _, doc := range docs {
		if err := c.Save(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", doc.Path, err))
			continue
		}
		if err := c.Close(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", doc.Path, err))
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

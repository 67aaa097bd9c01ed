// Package socket implements the editor boundary over the editor's Unix
// control socket, speaking newline-delimited JSON requests and responses.
package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fgrehm/moor/internal/editor"
)

var _ editor.Client = (*Client)(nil)

// request is a single control message sent to the editor.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is the editor's reply to a request.
type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client talks to the editor over its control socket. Requests are issued
// one at a time.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

// Dial connects to the editor control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to editor socket: %w", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Disconnect closes the underlying connection.
func (c *Client) Disconnect() error {
	return c.conn.Close()
}

// noDeadline clears a previously set connection deadline.
var noDeadline time.Time

// call sends one request and decodes the matching response into result.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer func() { _ = c.conn.SetDeadline(noDeadline) }()
	}

	c.nextID++
	req := request{ID: c.nextID, Method: method, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("sending %s request: %w", method, err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("editor answered request %d, expected %d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return fmt.Errorf("editor: %s", resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// Documents returns all currently open documents.
func (c *Client) Documents(ctx context.Context) ([]editor.Document, error) {
	var docs []editor.Document
	if err := c.call(ctx, "documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Save persists unsaved changes of a document.
func (c *Client) Save(ctx context.Context, id string) error {
	return c.call(ctx, "save", map[string]string{"document": id}, nil)
}

// Close closes a document.
func (c *Client) Close(ctx context.Context, id string) error {
	return c.call(ctx, "close", map[string]string{"document": id}, nil)
}

// OpenBrowser opens a directory browser at the given path.
func (c *Client) OpenBrowser(ctx context.Context, path string) error {
	return c.call(ctx, "open-browser", map[string]string{"path": path}, nil)
}

// DropConnection invalidates remote connection state for a host. The editor
// treats an unknown host as a no-op.
func (c *Client) DropConnection(ctx context.Context, host string) error {
	return c.call(ctx, "drop-connection", map[string]string{"host": host}, nil)
}

// Package remote implements the viewport Authority over a websocket
// connection to a terminal-state daemon.
//
// The wire protocol is JSON. Client requests carry an id and a type
// ("read_rich_grid", "set_scrollback", "read_grid_text"); the server
// answers each with a {"kind":"response"} message echoing the id, and
// pushes unsolicited {"kind":"event"} messages, currently "grid_diff",
// whenever terminal content changes.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/gogpu/termgrid"
)

// ErrClosed is returned by requests after the connection is gone.
var ErrClosed = errors.New("remote: connection closed")

const (
	kindResponse = "response"
	kindEvent    = "event"
)

type request struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`

	// set_scrollback
	Offset int `json:"offset"`

	// read_grid_text
	StartRow int `json:"start_row"`
	StartCol int `json:"start_col"`
	EndRow   int `json:"end_row"`
	EndCol   int `json:"end_col"`
}

// serverMessage is the single envelope for everything the server sends.
// Responses echo the request id; events have no id.
type serverMessage struct {
	Kind    string             `json:"kind"`
	ID      uint64             `json:"id,omitempty"`
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	Grid    *termgrid.Snapshot `json:"grid,omitempty"`
	Diff    *termgrid.Diff     `json:"diff,omitempty"`
	Text    string             `json:"text,omitempty"`
}

// Client speaks the daemon protocol over one websocket connection and
// implements viewport.Authority. Requests may be issued from any
// goroutine; pushed diffs arrive on the client's read goroutine, so the
// OnDiff callback must hand them off to the render goroutine itself.
type Client struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan serverMessage
	onDiff  func(d *termgrid.Diff)
	err     error
	done    chan struct{}
}

// Dial connects to a daemon websocket endpoint, e.g.
// "ws://127.0.0.1:9000/terminal". origin may be empty.
func Dial(url, origin string) (*Client, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", url, err)
	}
	return NewClient(ws), nil
}

// NewClient wraps an established websocket connection. The client owns
// the connection and closes it on Close.
func NewClient(ws *websocket.Conn) *Client {
	c := &Client{
		ws:      ws,
		pending: make(map[uint64]chan serverMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetOnDiff installs the pushed-diff callback. It runs on the read
// goroutine; install it before the server starts pushing.
func (c *Client) SetOnDiff(fn func(d *termgrid.Diff)) {
	c.mu.Lock()
	c.onDiff = fn
	c.mu.Unlock()
}

// Close tears the connection down. In-flight requests fail with
// ErrClosed.
func (c *Client) Close() error {
	err := c.ws.Close()
	c.fail(ErrClosed)
	return err
}

// Snapshot implements viewport.Authority: a full rich-grid read.
func (c *Client) Snapshot(ctx context.Context) (*termgrid.Snapshot, error) {
	resp, err := c.roundTrip(ctx, request{Type: "read_rich_grid"})
	if err != nil {
		return nil, err
	}
	if resp.Grid == nil {
		return nil, fmt.Errorf("remote: %s response without grid", resp.Type)
	}
	return resp.Grid, nil
}

// SetScrollOffset implements viewport.Authority. Fire-and-forget: the
// daemon acknowledges, but the viewport never waits on scroll position
// changes, so the ack is drained in the background and only logged on
// failure.
func (c *Client) SetScrollOffset(offset int) {
	id, ch, err := c.send(request{Type: "set_scrollback", Offset: offset})
	if err != nil {
		termgrid.Logger().Warn("remote: set_scrollback send failed", "error", err)
		return
	}
	go func() {
		select {
		case resp := <-ch:
			if resp.Type == "error" {
				termgrid.Logger().Warn("remote: set_scrollback rejected",
					"offset", offset, "message", resp.Message)
			}
		case <-c.done:
		}
		c.forget(id)
	}()
}

// SelectedText implements viewport.Authority: reads the text between
// two grid positions (inclusive, already normalized by the caller).
func (c *Client) SelectedText(ctx context.Context, startRow, startCol, endRow, endCol int) (string, error) {
	resp, err := c.roundTrip(ctx, request{
		Type:     "read_grid_text",
		StartRow: startRow,
		StartCol: startCol,
		EndRow:   endRow,
		EndCol:   endCol,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// send assigns an id, registers a pending channel and writes the
// request. The caller must forget the id once done with the channel.
func (c *Client) send(req request) (uint64, chan serverMessage, error) {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return 0, nil, err
	}
	c.nextID++
	req.ID = c.nextID
	ch := make(chan serverMessage, 1)
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := websocket.JSON.Send(c.ws, &req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return 0, nil, fmt.Errorf("remote: send %s: %w", req.Type, err)
	}
	return req.ID, ch, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (serverMessage, error) {
	id, ch, err := c.send(req)
	if err != nil {
		return serverMessage{}, err
	}
	defer c.forget(id)

	select {
	case resp := <-ch:
		if resp.Type == "error" {
			return serverMessage{}, fmt.Errorf("remote: %s: %s", req.Type, resp.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return serverMessage{}, fmt.Errorf("remote: %s: %w", req.Type, ctx.Err())
	case <-c.done:
		return serverMessage{}, ErrClosed
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		var msg serverMessage
		if err := websocket.JSON.Receive(c.ws, &msg); err != nil {
			if !errors.Is(err, io.EOF) {
				termgrid.Logger().Warn("remote: read failed", "error", err)
			}
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		switch msg.Kind {
		case kindResponse:
			c.mu.Lock()
			ch := c.pending[msg.ID]
			c.mu.Unlock()
			if ch == nil {
				termgrid.Logger().Debug("remote: response for unknown id", "id", msg.ID)
				continue
			}
			ch <- msg
		case kindEvent:
			c.dispatchEvent(msg)
		default:
			termgrid.Logger().Debug("remote: unknown message kind", "kind", msg.Kind)
		}
	}
}

func (c *Client) dispatchEvent(msg serverMessage) {
	switch msg.Type {
	case "grid_diff":
		if msg.Diff == nil {
			termgrid.Logger().Debug("remote: grid_diff event without diff")
			return
		}
		c.mu.Lock()
		fn := c.onDiff
		c.mu.Unlock()
		if fn != nil {
			fn(msg.Diff)
		}
	default:
		termgrid.Logger().Debug("remote: unknown event", "type", msg.Type)
	}
}

// fail marks the connection dead and wakes everything waiting on it.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

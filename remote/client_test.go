package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/gogpu/termgrid"
)

// testServer runs a scripted daemon endpoint for one connection.
type testServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	requests []request

	// handle produces the response for each request; nil means answer
	// with a default per type.
	handle func(req request) *serverMessage

	connected chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{connected: make(chan struct{})}
	ts.srv = httptest.NewServer(websocket.Handler(ts.serve))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) serve(ws *websocket.Conn) {
	ts.mu.Lock()
	ts.conn = ws
	ts.mu.Unlock()
	close(ts.connected)

	for {
		var req request
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			return
		}
		ts.mu.Lock()
		ts.requests = append(ts.requests, req)
		handle := ts.handle
		ts.mu.Unlock()

		var resp *serverMessage
		if handle != nil {
			resp = handle(req)
		} else {
			resp = defaultResponse(req)
		}
		if resp == nil {
			continue
		}
		resp.Kind = kindResponse
		resp.ID = req.ID
		if err := websocket.JSON.Send(ws, resp); err != nil {
			return
		}
	}
}

func defaultResponse(req request) *serverMessage {
	switch req.Type {
	case "read_rich_grid":
		return &serverMessage{Type: "rich_grid", Grid: sampleSnapshot()}
	case "set_scrollback":
		return &serverMessage{Type: "ok"}
	case "read_grid_text":
		return &serverMessage{Type: "text", Text: "sample"}
	default:
		return &serverMessage{Type: "error", Message: "unknown request"}
	}
}

func (ts *testServer) push(t *testing.T, msg serverMessage) {
	t.Helper()
	select {
	case <-ts.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
	}
	msg.Kind = kindEvent
	ts.mu.Lock()
	conn := ts.conn
	ts.mu.Unlock()
	if err := websocket.JSON.Send(conn, &msg); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (ts *testServer) recorded() []request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]request, len(ts.requests))
	copy(out, ts.requests)
	return out
}

func (ts *testServer) wsURL() string {
	return strings.Replace(ts.srv.URL, "http", "ws", 1)
}

func sampleSnapshot() *termgrid.Snapshot {
	return &termgrid.Snapshot{
		Rows: []termgrid.Row{
			termgrid.RowFromString("hello", 10),
			termgrid.RowFromString("world", 10),
		},
		Cursor:          termgrid.Cursor{Row: 1, Col: 5},
		Dimensions:      termgrid.Dimensions{Rows: 2, Cols: 10},
		Title:           "test",
		TotalScrollback: 40,
	}
}

func dialTest(t *testing.T, ts *testServer) *Client {
	t.Helper()
	c, err := Dial(ts.wsURL(), "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSnapshotRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	c := dialTest(t, ts)

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Dimensions != (termgrid.Dimensions{Rows: 2, Cols: 10}) {
		t.Errorf("dimensions = %+v", snap.Dimensions)
	}
	if snap.Title != "test" || snap.TotalScrollback != 40 {
		t.Errorf("title=%q total=%d", snap.Title, snap.TotalScrollback)
	}
	if got := snap.Rows[0].Cells[0].Content; got != "h" {
		t.Errorf("cell content = %q", got)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 || reqs[0].Type != "read_rich_grid" || reqs[0].ID == 0 {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestSelectedText(t *testing.T) {
	ts := newTestServer(t)
	c := dialTest(t, ts)

	text, err := c.SelectedText(context.Background(), 0, 2, 1, 4)
	if err != nil {
		t.Fatalf("SelectedText: %v", err)
	}
	if text != "sample" {
		t.Errorf("text = %q", text)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests = %+v", reqs)
	}
	r := reqs[0]
	if r.Type != "read_grid_text" || r.StartCol != 2 || r.EndRow != 1 || r.EndCol != 4 {
		t.Errorf("request = %+v", r)
	}
}

func TestSetScrollOffsetFireAndForget(t *testing.T) {
	ts := newTestServer(t)
	c := dialTest(t, ts)

	c.SetScrollOffset(25)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reqs := ts.recorded()
		if len(reqs) == 1 {
			if reqs[0].Type != "set_scrollback" || reqs[0].Offset != 25 {
				t.Fatalf("request = %+v", reqs[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("set_scrollback never reached the server")
}

func TestErrorResponse(t *testing.T) {
	ts := newTestServer(t)
	ts.handle = func(request) *serverMessage {
		return &serverMessage{Type: "error", Message: "session gone"}
	}
	c := dialTest(t, ts)

	_, err := c.Snapshot(context.Background())
	if err == nil || !strings.Contains(err.Error(), "session gone") {
		t.Errorf("err = %v", err)
	}
}

func TestPushedDiffCallback(t *testing.T) {
	ts := newTestServer(t)
	c := dialTest(t, ts)

	got := make(chan *termgrid.Diff, 1)
	c.SetOnDiff(func(d *termgrid.Diff) { got <- d })

	ts.push(t, serverMessage{
		Type: "grid_diff",
		Diff: &termgrid.Diff{
			DirtyRows:       []termgrid.DirtyRow{{Index: 3, Row: termgrid.RowFromString("x", 10)}},
			Dimensions:      termgrid.Dimensions{Rows: 24, Cols: 80},
			TotalScrollback: 99,
		},
	})

	select {
	case d := <-got:
		if d.TotalScrollback != 99 || len(d.DirtyRows) != 1 || d.DirtyRows[0].Index != 3 {
			t.Errorf("diff = %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("diff never delivered")
	}
}

func TestRequestTimeout(t *testing.T) {
	ts := newTestServer(t)
	ts.handle = func(request) *serverMessage { return nil } // never answer
	c := dialTest(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Snapshot(ctx)
	if err == nil || ctx.Err() == nil {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestCloseFailsPending(t *testing.T) {
	ts := newTestServer(t)
	ts.handle = func(request) *serverMessage { return nil }
	c := dialTest(t, ts)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Snapshot(context.Background())
		errCh <- err
	}()

	// Let the request hit the wire before closing.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(ts.recorded()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	c.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("pending request did not fail on close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request never unblocked")
	}

	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Error("request after close did not fail")
	}
}

func TestConcurrentRequestsMatchIDs(t *testing.T) {
	ts := newTestServer(t)
	ts.handle = func(req request) *serverMessage {
		switch req.Type {
		case "read_grid_text":
			return &serverMessage{Type: "text", Text: "t"}
		default:
			return &serverMessage{Type: "rich_grid", Grid: sampleSnapshot()}
		}
	}
	c := dialTest(t, ts)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.Snapshot(context.Background()); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			text, err := c.SelectedText(context.Background(), 0, 0, 0, 1)
			if err != nil {
				errs <- err
			} else if text != "t" {
				errs <- ErrClosed
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent request: %v", err)
	}
}

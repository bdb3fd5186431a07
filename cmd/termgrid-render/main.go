// Command termgrid-render renders a terminal grid to a PNG file.
//
// With --connect it reads a live snapshot from a daemon websocket;
// otherwise it renders a built-in sample grid. Useful for eyeballing
// backend output and comparing the GPU and software rasterizers.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/backend"
	_ "github.com/gogpu/termgrid/backend/gpu"
	"github.com/gogpu/termgrid/remote"
)

func main() {
	var (
		width    = flag.Int("width", 800, "output width in pixels")
		height   = flag.Int("height", 600, "output height in pixels")
		output   = flag.StringP("output", "o", "grid.png", "output PNG file")
		name     = flag.String("backend", "", "rasterizer backend (gpu, software; empty = auto)")
		fontSize = flag.Float64("font-size", 14, "font size in points")
		density  = flag.Float64("density", 1.0, "device pixel ratio")
		connect  = flag.String("connect", "", "websocket URL of a terminal daemon (empty = sample grid)")
		verbose  = flag.BoolP("verbose", "v", false, "log to stderr")
	)
	flag.Parse()

	if *verbose {
		termgrid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := backend.Config{
		Theme:    termgrid.DefaultTheme(),
		FontSize: *fontSize,
		Density:  *density,
		Width:    *width,
		Height:   *height,
	}

	var (
		ras backend.Rasterizer
		err error
	)
	if *name != "" {
		ras, err = backend.New(*name, cfg)
	} else {
		ras, err = backend.NewDefault(cfg)
	}
	if err != nil {
		log.Fatalf("backend: %v", err)
	}
	defer ras.Close()

	snap, err := loadSnapshot(*connect, ras)
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}

	if err := ras.Render(backend.Frame{Snapshot: snap}); err != nil {
		log.Fatalf("render: %v", err)
	}
	if err := ras.Target().SavePNG(*output); err != nil {
		log.Fatalf("save: %v", err)
	}

	rows, cols := ras.GridSize()
	log.Printf("rendered %dx%d cells with %s backend to %s", rows, cols, ras.Name(), *output)
}

func loadSnapshot(url string, ras backend.Rasterizer) (*termgrid.Snapshot, error) {
	if url == "" {
		rows, cols := ras.GridSize()
		return sampleSnapshot(rows, cols), nil
	}

	client, err := remote.Dial(url, "")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Snapshot(ctx)
}

// sampleSnapshot fills the grid with styled demo content.
func sampleSnapshot(rows, cols int) *termgrid.Snapshot {
	colors := []string{"red", "green", "yellow", "blue", "magenta", "cyan"}

	out := make([]termgrid.Row, 0, rows)
	out = append(out, termgrid.RowFromString("termgrid sample grid", cols))
	for i := len(out); i < rows; i++ {
		row := termgrid.RowFromString(fmt.Sprintf("line %2d: the quick brown fox jumps over the lazy dog", i), cols)
		for j := range row.Cells {
			c := &row.Cells[j]
			c.FG = colors[i%len(colors)]
			switch i % 4 {
			case 1:
				c.Bold = true
			case 2:
				c.Italic = true
			case 3:
				c.Underline = true
			}
		}
		out = append(out, row)
	}

	return &termgrid.Snapshot{
		Rows:       out,
		Cursor:     termgrid.Cursor{Row: rows - 1, Col: 0},
		Dimensions: termgrid.Dimensions{Rows: rows, Cols: cols},
		Title:      "termgrid sample",
	}
}

// Package termgrid renders a live terminal character grid to a screen
// surface at interactive frame rates and keeps the visible viewport
// synchronized with a remote, authoritative terminal-state source.
//
// The grid content, ANSI/VT interpretation, and scrollback storage are owned
// by an external authority reached over an RPC-like boundary; termgrid never
// parses control sequences. What it does own:
//
//   - a glyph texture atlas with shelf packing (package atlas)
//   - the cell-to-GPU-buffer encoding contract (package encode)
//   - a GPU-instanced cell pipeline and a software fallback that produce
//     visually equivalent output (packages backend and backend/gpu)
//   - the scrollback/viewport state machine that reconciles user scrolling
//     with pushed diffs and snapshots (package viewport)
//   - the shell-facing view surface with paint coalescing (package view)
//
// The root package holds the data model shared by all of them: cells, rows,
// snapshots, diffs, themes, selections, packed colors, and the pixel buffer.
package termgrid

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termgrid"
	"github.com/gogpu/termgrid/atlas"
	"github.com/gogpu/termgrid/backend"
	"github.com/gogpu/termgrid/encode"
)

// Embedded cell grid shader source.
//
//go:embed shaders/cellgrid.wgsl
var cellGridShaderSource string

func init() {
	backend.Register(backend.BackendGPU, func(cfg backend.Config) (backend.Rasterizer, error) {
		return New(cfg)
	})
}

// gpuWait bounds how long a frame readback may block.
const gpuWait = 5 * time.Second

// Rasterizer draws cell grids with an instanced quad pipeline. Cell
// records upload as an RGBA32Uint texture (one texel per cell) and the
// glyph atlas as an R8Unorm coverage texture; the fragment shader
// composites background, glyph, underline and cursor per pixel. The
// frame is rendered offscreen and read back into a pixmap.
type Rasterizer struct {
	cfg     backend.Config
	dev     *deviceHandle
	atlas   *atlas.Atlas
	encoder *encode.Encoder
	target  *termgrid.Pixmap

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniformBuf hal.Buffer

	colorTex  hal.Texture
	colorView hal.TextureView
	colorW    int
	colorH    int

	cellTex  hal.Texture
	cellView hal.TextureView
	cellCols int
	cellRows int
	cellData []byte

	atlasTex  hal.Texture
	atlasView hal.TextureView
	atlasW    int
	atlasH    int

	rows, cols int
}

// New creates the GPU rasterizer. It fails when no adapter can be
// opened or the pipeline cannot be built, leaving the caller free to
// fall back to the software backend.
func New(cfg backend.Config) (*Rasterizer, error) {
	if cfg.Theme == (termgrid.Theme{}) {
		cfg.Theme = termgrid.DefaultTheme()
	}
	if cfg.Density <= 0 {
		cfg.Density = 1.0
	}

	dev, err := acquireDevice()
	if err != nil {
		return nil, err
	}

	a, err := atlas.New(cfg.Fonts, atlas.Config{
		FontSize: cfg.FontSize,
		Density:  cfg.Density,
	})
	if err != nil {
		dev.release()
		return nil, err
	}
	a.PopulateASCII()

	r := &Rasterizer{
		cfg:     cfg,
		dev:     dev,
		atlas:   a,
		encoder: encode.NewEncoder(cfg.Theme),
		target:  termgrid.NewPixmap(cfg.Width, cfg.Height),
	}
	if err := r.createPipeline(); err != nil {
		r.Close()
		return nil, err
	}
	r.recomputeGrid()
	return r, nil
}

func (r *Rasterizer) Name() string { return backend.BackendGPU }

func (r *Rasterizer) Metrics() atlas.Metrics { return r.atlas.Metrics() }

func (r *Rasterizer) GridSize() (rows, cols int) { return r.rows, r.cols }

func (r *Rasterizer) Target() *termgrid.Pixmap { return r.target }

func (r *Rasterizer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return backend.ErrNotInitialized
	}
	r.target.Resize(width, height)
	r.recomputeGrid()
	return nil
}

func (r *Rasterizer) SetDensity(density float64) error {
	if density == r.atlas.Density() {
		return nil
	}
	if err := r.atlas.Invalidate(density); err != nil {
		return err
	}
	r.atlas.PopulateASCII()
	r.cfg.Density = density
	r.recomputeGrid()
	return nil
}

func (r *Rasterizer) recomputeGrid() {
	m := r.atlas.Metrics()
	r.cols = r.target.Width() / m.CellWidth
	r.rows = r.target.Height() / m.CellHeight
}

// createPipeline compiles the cell grid shader and creates the render
// pipeline and uniform buffer.
func (r *Rasterizer) createPipeline() error {
	shader, err := createShaderModule(r.dev.device, "cellgrid_shader", cellGridShaderSource)
	if err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	r.shader = shader

	// Bind group layout:
	//   Binding 0: Uniforms (uniform buffer, vertex+fragment)
	//   Binding 1: cell records (texture_2d<u32>, vertex)
	//   Binding 2: glyph atlas (texture_2d<f32>, fragment)
	bindLayout, err := r.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cellgrid_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeUint,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cellgrid_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	pipeline, err := r.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "cellgrid_pipeline",
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline: %w", err)
	}
	r.pipeline = pipeline

	uniformBuf, err := r.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cellgrid_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create uniform buffer: %w", err)
	}
	r.uniformBuf = uniformBuf
	return nil
}

// Render draws the frame on the GPU and reads it back into the target.
func (r *Rasterizer) Render(frame backend.Frame) error {
	if r.target.Width() == 0 || r.target.Height() == 0 {
		return backend.ErrNotInitialized
	}

	snap := frame.Snapshot
	if snap == nil || snap.Dimensions.Rows <= 0 || snap.Dimensions.Cols <= 0 {
		r.target.Clear(r.encoder.Background())
		return nil
	}
	rows, cols := snap.Dimensions.Rows, snap.Dimensions.Cols

	records := r.encoder.Encode(snap, frame.Selection, r.atlas)

	if err := r.ensureColorTexture(); err != nil {
		return err
	}
	if err := r.uploadCells(records, rows, cols); err != nil {
		return err
	}
	if err := r.uploadAtlas(); err != nil {
		return err
	}
	r.uploadUniforms(snap)

	if err := r.encodeAndSubmit(rows, cols); err != nil {
		return err
	}

	// CPU overlays on the read-back frame.
	if frame.Hover.Active {
		r.overlayHover(frame.Hover, rows, cols)
	}
	backend.DrawScrollbar(r.target, snap, r.encoder.Foreground(), r.cfg.Density)
	return nil
}

func (r *Rasterizer) ensureColorTexture() error {
	w, h := r.target.Width(), r.target.Height()
	if r.colorTex != nil && r.colorW == w && r.colorH == h {
		return nil
	}
	r.destroyColorTexture()

	tex, err := r.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "cellgrid_color",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpu: create color texture: %w", err)
	}
	view, err := r.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "cellgrid_color_view",
	})
	if err != nil {
		r.dev.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create color view: %w", err)
	}
	r.colorTex, r.colorView = tex, view
	r.colorW, r.colorH = w, h
	return nil
}

// uploadCells writes the packed records into the cell texture,
// recreating it when the grid dimensions change.
func (r *Rasterizer) uploadCells(records []uint32, rows, cols int) error {
	if r.cellTex == nil || r.cellCols != cols || r.cellRows != rows {
		r.destroyCellTexture()

		tex, err := r.dev.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "cellgrid_cells",
			Size:          hal.Extent3D{Width: uint32(cols), Height: uint32(rows), DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatRGBA32Uint,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("gpu: create cell texture: %w", err)
		}
		view, err := r.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: "cellgrid_cells_view",
		})
		if err != nil {
			r.dev.device.DestroyTexture(tex)
			return fmt.Errorf("gpu: create cell view: %w", err)
		}
		r.cellTex, r.cellView = tex, view
		r.cellCols, r.cellRows = cols, rows
	}

	need := len(records) * 4
	if cap(r.cellData) < need {
		r.cellData = make([]byte, need)
	}
	data := r.cellData[:need]
	for i, word := range records {
		binary.LittleEndian.PutUint32(data[i*4:], word)
	}

	r.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.cellTex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(cols) * 16, RowsPerImage: uint32(rows)},
		&hal.Extent3D{Width: uint32(cols), Height: uint32(rows), DepthOrArrayLayers: 1},
	)
	return nil
}

// uploadAtlas re-uploads glyph coverage when the atlas is dirty,
// recreating the texture after growth.
func (r *Rasterizer) uploadAtlas() error {
	w, h := r.atlas.Size()
	if r.atlasTex != nil && (r.atlasW != w || r.atlasH != h) {
		r.destroyAtlasTexture()
	}
	if r.atlasTex == nil {
		tex, err := r.dev.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "cellgrid_atlas",
			Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatR8Unorm,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("gpu: create atlas texture: %w", err)
		}
		view, err := r.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: "cellgrid_atlas_view",
		})
		if err != nil {
			r.dev.device.DestroyTexture(tex)
			return fmt.Errorf("gpu: create atlas view: %w", err)
		}
		r.atlasTex, r.atlasView = tex, view
		r.atlasW, r.atlasH = w, h
	} else if !r.atlas.Dirty() {
		return nil
	}

	r.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.atlasTex, MipLevel: 0},
		r.atlas.Data(),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	r.atlas.MarkClean()
	return nil
}

func (r *Rasterizer) uploadUniforms(snap *termgrid.Snapshot) {
	m := r.atlas.Metrics()
	u := frameUniforms{
		cols:               uint32(snap.Dimensions.Cols),
		rows:               uint32(snap.Dimensions.Rows),
		cellWidth:          uint32(m.CellWidth),
		cellHeight:         uint32(m.CellHeight),
		cursorCol:          uint32(snap.Cursor.Col),
		cursorRow:          uint32(snap.Cursor.Row),
		cursorVisible:      !snap.CursorHidden && snap.ScrollbackOffset == 0,
		underlineThickness: uint32(backend.UnderlineThickness(r.cfg.Density)),
		targetW:            float32(r.target.Width()),
		targetH:            float32(r.target.Height()),
		cursorColor:        r.encoder.CursorColor(),
		accentColor:        r.encoder.CursorAccent(),
		selectionColor:     r.encoder.SelectionBackground(),
		backgroundColor:    r.encoder.Background(),
	}
	r.dev.queue.WriteBuffer(r.uniformBuf, 0, u.pack())
}

// encodeAndSubmit records the render pass, copies the color texture to
// a staging buffer, waits for the GPU and unpacks the pixels.
func (r *Rasterizer) encodeAndSubmit(rows, cols int) error {
	device, queue := r.dev.device, r.dev.queue

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cellgrid_bind",
		Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: r.cellView.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: r.atlasView.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group: %w", err)
	}
	defer device.DestroyBindGroup(bindGroup)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "cellgrid_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cellgrid_frame"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	bg := r.encoder.Background()
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cellgrid_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    r.colorView,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(bg.R()) / 255,
				G: float64(bg.G()) / 255,
				B: float64(bg.B()) / 255,
				A: float64(bg.A()) / 255,
			},
		}},
	})
	rp.SetPipeline(r.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(6, uint32(rows*cols), 0, 0)
	rp.End()

	// The color texture leaves the pass in attachment layout; the copy
	// below needs transfer-src.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	w, h := uint32(r.target.Width()), uint32(r.target.Height())
	bytesPerRow := w * 4
	// WebGPU and DX12 require BytesPerRow aligned to 256 bytes.
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cellgrid_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(stagingBuf)

	encoder.CopyTextureToBuffer(r.colorTex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: r.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	// Back to attachment layout for the next frame.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	fenceOK, err := device.Wait(fence, 1, gpuWait)
	if err != nil || !fenceOK {
		return fmt.Errorf("gpu: wait for frame: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("gpu: readback: %w", err)
	}

	dst := r.target.Data()
	if alignedBytesPerRow == bytesPerRow {
		copy(dst, readback[:len(dst)])
	} else {
		for row := uint32(0); row < h; row++ {
			srcOff := int(row) * int(alignedBytesPerRow)
			dstOff := int(row) * int(bytesPerRow)
			copy(dst[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
		}
	}
	return nil
}

// overlayHover underlines hovered cells on the CPU after readback, in
// the same bottom band the shader uses for flagged underlines.
func (r *Rasterizer) overlayHover(hover termgrid.Selection, rows, cols int) {
	m := r.atlas.Metrics()
	fg := r.encoder.Foreground()
	t := backend.UnderlineThickness(r.cfg.Density)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if hover.Contains(row, col) {
				r.target.FillRect(col*m.CellWidth, (row+1)*m.CellHeight-t, m.CellWidth, t, fg)
			}
		}
	}
}

func (r *Rasterizer) destroyColorTexture() {
	if r.colorView != nil {
		r.dev.device.DestroyTextureView(r.colorView)
		r.colorView = nil
	}
	if r.colorTex != nil {
		r.dev.device.DestroyTexture(r.colorTex)
		r.colorTex = nil
	}
}

func (r *Rasterizer) destroyCellTexture() {
	if r.cellView != nil {
		r.dev.device.DestroyTextureView(r.cellView)
		r.cellView = nil
	}
	if r.cellTex != nil {
		r.dev.device.DestroyTexture(r.cellTex)
		r.cellTex = nil
	}
}

func (r *Rasterizer) destroyAtlasTexture() {
	if r.atlasView != nil {
		r.dev.device.DestroyTextureView(r.atlasView)
		r.atlasView = nil
	}
	if r.atlasTex != nil {
		r.dev.device.DestroyTexture(r.atlasTex)
		r.atlasTex = nil
	}
}

// Close releases all GPU resources. Safe to call more than once.
func (r *Rasterizer) Close() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	r.destroyColorTexture()
	r.destroyCellTexture()
	r.destroyAtlasTexture()
	if r.uniformBuf != nil {
		r.dev.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}
	if r.pipeline != nil {
		r.dev.device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		r.dev.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.dev.device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.dev.device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
	r.dev.release()
	r.dev = nil
}

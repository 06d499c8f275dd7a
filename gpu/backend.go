package gpu

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// Target is a render attachment presented or read back by the caller.
// Implemented by [SurfaceFrame] and [Offscreen].
type Target interface {
	pipeline.Target
	// Attachment returns the view rendered to and its format.
	Attachment() (*wgpu.TextureView, wgpu.TextureFormat)
}

// Backend implements [pipeline.Backend] with WebGPU render pipelines.
// It must only be used from the thread that owns the device.
type Backend struct {
	ctx         *Context
	reg         *Registry
	params      *wgpu.Buffer
	paramsGroup *wgpu.BindGroup
	kernel      *texture
	scratch     []byte
	log         zerolog.Logger
}

var _ pipeline.Backend = (*Backend)(nil)

// New builds the program registry for presentation in surfaceFormat and
// allocates the parameter buffer and kernel texture.
func New(ctx *Context, surfaceFormat wgpu.TextureFormat) (_ *Backend, err error) {
	b := &Backend{ctx: ctx, log: pixview.ComponentLogger("gpu")}
	defer func() {
		if err != nil {
			b.Release()
		}
	}()
	b.reg, err = NewRegistry(ctx, surfaceFormat)
	if err != nil {
		return nil, err
	}
	b.params, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "params",
		Size:  pixview.UniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: params buffer: %w", pixview.ErrDeviceInit, err)
	}
	b.paramsGroup, err = ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "params",
		Layout: b.reg.paramsLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.params, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: params bind group: %w", pixview.ErrDeviceInit, err)
	}
	b.kernel, err = newKernelTexture(b.reg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pixview.ErrDeviceInit, err)
	}
	return b, nil
}

// Registry returns the program registry.
func (b *Backend) Registry() *Registry { return b.reg }

func (b *Backend) Limits() pipeline.Limits { return b.ctx.Limits() }

func (b *Backend) NewStage(role pipeline.Role, size pipeline.Size, format pipeline.Format, layers int) (pipeline.Stage, error) {
	layout, sampler := b.reg.layoutFor(format)
	tex, err := newTexture(b.reg, role.String(), size, stageTextureFormat(format), layers, layout, sampler)
	if err != nil {
		return nil, err
	}
	return &Stage{role: role, format: format, tex: tex}, nil
}

func (b *Backend) LoadSource(img *pixview.SourceImage) (pipeline.Source, error) {
	d := img.Dims()
	maxDim := b.Limits().MaxTextureDimension
	if err := d.Validate(); err != nil {
		return nil, err
	} else if d.Shape != pixview.ShapeRGBA8888 {
		return nil, errors.New("source image must be rgba8888")
	} else if d.Width > maxDim || d.Height > maxDim {
		return nil, fmt.Errorf("%w: source %dx%d exceeds maximum texture dimension %d", pixview.ErrResourceLimit, d.Width, d.Height, maxDim)
	}
	return uploadSource(b.reg, img)
}

// Execute encodes the frame's commands into one command buffer and submits it.
// Uploads recorded after a draw split the submission so every command
// observes the results of the ones before it.
func (b *Backend) Execute(f *pipeline.Frame) error {
	enc, err := b.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	encoded := 0
	flush := func() error {
		if encoded == 0 {
			return nil
		}
		cmd, err := enc.Finish(nil)
		enc.Release()
		enc = nil
		if err != nil {
			return fmt.Errorf("finish: %w", err)
		}
		b.ctx.Queue.Submit(cmd)
		cmd.Release()
		encoded = 0
		enc, err = b.ctx.Device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("command encoder: %w", err)
		}
		return nil
	}
	defer func() {
		if enc != nil {
			enc.Release()
		}
	}()
	for _, cmd := range f.Commands {
		switch cmd := cmd.(type) {
		case pipeline.WriteParams:
			if err := flush(); err != nil {
				return err
			}
			b.scratch = cmd.Uniforms.AppendBytes(b.scratch[:0])
			b.ctx.Queue.WriteBuffer(b.params, 0, b.scratch)
		case pipeline.WriteKernel:
			if err := flush(); err != nil {
				return err
			}
			flat := cmd.Kernel.Flat()
			b.kernel.write(b.ctx.Queue, 0, wgpu.ToBytes(flat[:]), pixview.KernelSize*4)
		case pipeline.Clear:
			view, format, err := b.attachment(f, cmd.Output)
			if err != nil {
				return err
			}
			pass := enc.BeginRenderPass(passDescriptor(view, format, &cmd.Color))
			pass.End()
			pass.Release()
			encoded++
		case pipeline.Draw:
			if err := b.draw(enc, f, &cmd); err != nil {
				return fmt.Errorf("%s pass: %w", cmd.Program, err)
			}
			encoded++
		default:
			return fmt.Errorf("unsupported command %T", cmd)
		}
	}
	return flush()
}

func (b *Backend) draw(enc *wgpu.CommandEncoder, f *pipeline.Frame, d *pipeline.Draw) error {
	if err := d.Validate(); err != nil {
		return err
	}
	view, format, err := b.attachment(f, d.Output)
	if err != nil {
		return err
	}
	if d.Output.Kind == pipeline.SlotTarget && format != b.reg.SurfaceFormat() {
		b.log.Info().Uint32("format", uint32(format)).Msg("surface format changed, rebuilding pipelines")
		if err := b.reg.Rebuild(format); err != nil {
			return err
		}
	}
	groups := []*wgpu.BindGroup{b.paramsGroup}
	for _, s := range []pipeline.Slot{d.Primary, d.Secondary} {
		if s.Kind == pipeline.SlotNone {
			break
		}
		g, err := b.bindGroup(f, s)
		if err != nil {
			return err
		}
		groups = append(groups, g)
	}
	rp := b.reg.pipeline(d.Program, d.Entry)
	if rp == nil {
		return fmt.Errorf("%w: no pipeline for %s.%s", pixview.ErrShaderCompile, d.Program, d.Entry)
	}
	pass := enc.BeginRenderPass(passDescriptor(view, format, d.Clear))
	pass.SetPipeline(rp)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
	return nil
}

func passDescriptor(view *wgpu.TextureView, format wgpu.TextureFormat, clear *[4]float32) *wgpu.RenderPassDescriptor {
	att := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if clear != nil {
		c := *clear
		if format == wgpu.TextureFormatRGBA8Unorm || format == wgpu.TextureFormatBGRA8Unorm {
			// Clear values are linear. Non sRGB attachments store encoded values.
			for i := range 3 {
				c[i] = encodeSRGB(c[i])
			}
		}
		att.LoadOp = wgpu.LoadOpClear
		att.ClearValue = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
	}
	return &wgpu.RenderPassDescriptor{ColorAttachments: []wgpu.RenderPassColorAttachment{att}}
}

func encodeSRGB(l float32) float32 {
	l = max(0, min(1, l))
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math32.Pow(l, 1/2.4) - 0.055
}

func (b *Backend) attachment(f *pipeline.Frame, s pipeline.Slot) (*wgpu.TextureView, wgpu.TextureFormat, error) {
	switch s.Kind {
	case pipeline.SlotTarget:
		t, ok := f.Target.(Target)
		if !ok {
			return nil, 0, fmt.Errorf("target %T is not a gpu target", f.Target)
		}
		view, format := t.Attachment()
		if view == nil {
			return nil, 0, errors.New("target has no attachment")
		}
		return view, format, nil
	case pipeline.SlotStage:
		st, err := b.stage(f, s)
		if err != nil {
			return nil, 0, err
		}
		return st.tex.views[s.Layer], st.tex.format, nil
	}
	return nil, 0, fmt.Errorf("slot kind %d cannot be rendered to", s.Kind)
}

func (b *Backend) bindGroup(f *pipeline.Frame, s pipeline.Slot) (*wgpu.BindGroup, error) {
	switch s.Kind {
	case pipeline.SlotSource:
		src, ok := f.Source.(*source)
		if !ok {
			return nil, fmt.Errorf("source %T not uploaded by gpu backend", f.Source)
		}
		return src.tex.groups[0], nil
	case pipeline.SlotKernel:
		return b.kernel.groups[0], nil
	case pipeline.SlotStage:
		st, err := b.stage(f, s)
		if err != nil {
			return nil, err
		}
		return st.tex.groups[s.Layer], nil
	}
	return nil, fmt.Errorf("slot kind %d cannot be sampled", s.Kind)
}

func (b *Backend) stage(f *pipeline.Frame, s pipeline.Slot) (*Stage, error) {
	st, err := f.ResolveStage(s)
	if err != nil {
		return nil, err
	}
	gst, ok := st.(*Stage)
	if !ok {
		return nil, fmt.Errorf("stage %T not allocated by gpu backend", st)
	}
	return gst, nil
}

// Release releases the registry, parameter buffer and kernel texture.
// The [Context] is owned by the caller.
func (b *Backend) Release() {
	if b.kernel != nil {
		b.kernel.release()
		b.kernel = nil
	}
	if b.paramsGroup != nil {
		b.paramsGroup.Release()
		b.paramsGroup = nil
	}
	if b.params != nil {
		b.params.Release()
		b.params = nil
	}
	if b.reg != nil {
		b.reg.Release()
		b.reg = nil
	}
}

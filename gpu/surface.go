package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// Surface presents frames to a window surface.
type Surface struct {
	ctx     *Context
	surface *wgpu.Surface
	format  wgpu.TextureFormat
	alpha   wgpu.CompositeAlphaMode
	size    pipeline.Size
	frame   SurfaceFrame
	log     zerolog.Logger
}

var _ pipeline.Surface = (*Surface)(nil)

// SurfaceFrame is the swap chain texture acquired for one frame.
type SurfaceFrame struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	format wgpu.TextureFormat
	size   pipeline.Size
}

func (f *SurfaceFrame) Size() pipeline.Size { return f.size }

func (f *SurfaceFrame) Attachment() (*wgpu.TextureView, wgpu.TextureFormat) {
	return f.view, f.format
}

func (f *SurfaceFrame) release() {
	if f.view != nil {
		f.view.Release()
	}
	if f.tex != nil {
		f.tex.Release()
	}
	f.view, f.tex = nil, nil
}

// NewSurface wraps a window surface created on ctx's instance. An sRGB
// format is preferred so the output program need not encode.
func NewSurface(ctx *Context, surface *wgpu.Surface) (*Surface, error) {
	caps := surface.GetCapabilities(ctx.Adapter)
	if len(caps.Formats) == 0 {
		return nil, fmt.Errorf("%w: surface reports no formats", pixview.ErrDeviceInit)
	}
	s := &Surface{
		ctx:     ctx,
		surface: surface,
		format:  caps.Formats[0],
		log:     pixview.ComponentLogger("surface"),
	}
	for _, f := range caps.Formats {
		if IsSRGB(f) {
			s.format = f
			break
		}
	}
	if len(caps.AlphaModes) > 0 {
		s.alpha = caps.AlphaModes[0]
	}
	return s, nil
}

// Format returns the swap chain texture format.
func (s *Surface) Format() wgpu.TextureFormat { return s.format }

func (s *Surface) Configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("surface size must be positive")
	}
	s.frame.release()
	s.surface.Configure(s.ctx.Adapter, s.ctx.Device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   s.alpha,
	})
	s.size = pipeline.Size{Width: width, Height: height}
	s.log.Debug().Stringer("size", s.size).Msg("surface configured")
	return nil
}

// Acquire returns the next swap chain texture. Failures are classified
// with [pixview.ClassifySurfaceError].
func (s *Surface) Acquire() (pipeline.Target, error) {
	if s.frame.tex != nil {
		return nil, errors.New("previous frame not presented")
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, pixview.ClassifySurfaceError(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, pixview.ClassifySurfaceError(err)
	}
	s.frame = SurfaceFrame{tex: tex, view: view, format: s.format, size: s.size}
	return &s.frame, nil
}

func (s *Surface) Present() error {
	if s.frame.tex == nil {
		return errors.New("no frame acquired")
	}
	s.surface.Present()
	s.frame.release()
	return nil
}

// Release releases a frame still held and the surface.
func (s *Surface) Release() {
	s.frame.release()
	s.surface.Release()
}

// Offscreen is a [pipeline.Surface] rendering into a texture that can be
// read back, for headless rendering and tests.
type Offscreen struct {
	ctx      *Context
	format   wgpu.TextureFormat
	tex      *wgpu.Texture
	view     *wgpu.TextureView
	size     pipeline.Size
	presents int
}

var _ pipeline.Surface = (*Offscreen)(nil)

// NewOffscreen returns an unconfigured offscreen surface of the given
// format, which must be a 4 byte per texel RGBA format.
func NewOffscreen(ctx *Context, format wgpu.TextureFormat) *Offscreen {
	return &Offscreen{ctx: ctx, format: format}
}

// Format returns the render target format.
func (o *Offscreen) Format() wgpu.TextureFormat { return o.format }

func (o *Offscreen) Configure(width, height int) (err error) {
	if width <= 0 || height <= 0 {
		return errors.New("surface size must be positive")
	}
	o.Release()
	o.tex, err = o.ctx.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "offscreen",
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        o.format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("offscreen texture: %w", err)
	}
	o.view, err = o.tex.CreateView(nil)
	if err != nil {
		o.Release()
		return fmt.Errorf("offscreen view: %w", err)
	}
	o.size = pipeline.Size{Width: width, Height: height}
	return nil
}

func (o *Offscreen) Acquire() (pipeline.Target, error) {
	if o.tex == nil {
		return nil, &pixview.SurfaceError{Kind: pixview.SurfaceOutdated, Err: errors.New("offscreen not configured")}
	}
	return o, nil
}

func (o *Offscreen) Present() error {
	o.presents++
	return nil
}

// Presents returns the number of presented frames.
func (o *Offscreen) Presents() int { return o.presents }

func (o *Offscreen) Size() pipeline.Size { return o.size }

func (o *Offscreen) Attachment() (*wgpu.TextureView, wgpu.TextureFormat) {
	return o.view, o.format
}

// Image reads back the last rendered frame. BGRA formats are swizzled to RGBA.
func (o *Offscreen) Image() (*image.RGBA, error) {
	if o.tex == nil {
		return nil, errors.New("offscreen not configured")
	}
	img := image.NewRGBA(image.Rect(0, 0, o.size.Width, o.size.Height))
	if err := readLayer(o.ctx, o.tex, o.format, o.size, 0, img.Pix); err != nil {
		return nil, err
	}
	if o.format == wgpu.TextureFormatBGRA8Unorm || o.format == wgpu.TextureFormatBGRA8UnormSrgb {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

func (o *Offscreen) Release() {
	if o.view != nil {
		o.view.Release()
	}
	if o.tex != nil {
		o.tex.Release()
	}
	o.view, o.tex = nil, nil
}

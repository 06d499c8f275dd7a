package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// texture is a 2D texture with one view and sampling bind group per array layer.
type texture struct {
	tex    *wgpu.Texture
	format wgpu.TextureFormat
	size   pipeline.Size
	views  []*wgpu.TextureView
	groups []*wgpu.BindGroup
}

func newTexture(r *Registry, label string, size pipeline.Size, format wgpu.TextureFormat, layers int, layout *wgpu.BindGroupLayout, sampler *wgpu.Sampler) (_ *texture, err error) {
	dev := r.ctx.Device
	t := &texture{format: format, size: size}
	defer func() {
		if err != nil {
			t.release()
		}
	}()
	t.tex, err = dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(size.Width),
			Height:             uint32(size.Height),
			DepthOrArrayLayers: uint32(layers),
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s texture: %w", label, err)
	}
	for layer := range layers {
		view, err := t.tex.CreateView(&wgpu.TextureViewDescriptor{
			Format:          format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(layer),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			return nil, fmt.Errorf("%s view %d: %w", label, layer, err)
		}
		t.views = append(t.views, view)
		group, err := dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  label,
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: view},
				{Binding: 1, Sampler: sampler},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s bind group %d: %w", label, layer, err)
		}
		t.groups = append(t.groups, group)
	}
	return t, nil
}

// write uploads rows of data into one layer. bytesPerRow need not be aligned.
func (t *texture) write(q *wgpu.Queue, layer int, data []byte, bytesPerRow int) {
	q.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.size.Height),
		},
		&wgpu.Extent3D{Width: uint32(t.size.Width), Height: uint32(t.size.Height), DepthOrArrayLayers: 1},
	)
}

func (t *texture) release() {
	for _, g := range t.groups {
		g.Release()
	}
	for _, v := range t.views {
		v.Release()
	}
	if t.tex != nil {
		t.tex.Release()
	}
	t.groups, t.views, t.tex = nil, nil, nil
}

// Stage is an intermediate render target allocated by [Backend].
type Stage struct {
	role   pipeline.Role
	format pipeline.Format
	tex    *texture
}

var _ pipeline.Stage = (*Stage)(nil)

func (s *Stage) Role() pipeline.Role     { return s.role }
func (s *Stage) Size() pipeline.Size     { return s.tex.size }
func (s *Stage) Format() pipeline.Format { return s.format }
func (s *Stage) Layers() int             { return len(s.tex.views) }
func (s *Stage) Release()                { s.tex.release() }

func stageTextureFormat(f pipeline.Format) wgpu.TextureFormat {
	if f == pipeline.FormatDisplay {
		return displayTextureFormat
	}
	return hdrTextureFormat
}

// source is the uploaded source image. Texels are decoded from sRGB on sampling.
type source struct {
	tex *texture
}

func (s *source) Size() pipeline.Size { return s.tex.size }
func (s *source) Release()            { s.tex.release() }

func uploadSource(r *Registry, img *pixview.SourceImage) (*source, error) {
	d := img.Dims()
	size := pipeline.Size{Width: d.Width, Height: d.Height}
	tex, err := newTexture(r, "source", size, wgpu.TextureFormatRGBA8UnormSrgb, 1, r.filterableLayout, r.filtering)
	if err != nil {
		return nil, err
	}
	tex.write(r.ctx.Queue, 0, img.Buffer(), d.Stride)
	return &source{tex: tex}, nil
}

// kernelTexture holds the cross-correlation weights as a single channel float texture.
func newKernelTexture(r *Registry) (*texture, error) {
	size := pipeline.Size{Width: pixview.KernelSize, Height: pixview.KernelSize}
	return newTexture(r, "kernel", size, kernelTextureFormat, 1, r.unfilterableLayout, r.nonFiltering)
}

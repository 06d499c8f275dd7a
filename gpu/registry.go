package gpu

import (
	"embed"
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

const (
	hdrTextureFormat     = wgpu.TextureFormatRGBA32Float
	displayTextureFormat = wgpu.TextureFormatRGBA8UnormSrgb
	kernelTextureFormat  = wgpu.TextureFormatR32Float
)

// ProgramSource returns the complete WGSL of a program: generated constants,
// the shared prelude and the program itself.
func ProgramSource(id pipeline.ProgramID, surfaceSRGB bool) (string, error) {
	prelude, err := shaderFS.ReadFile("shaders/prelude.wgsl")
	if err != nil {
		return "", err
	}
	body, err := shaderFS.ReadFile("shaders/" + pipeline.Programs[id].Name + ".wgsl")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "const KERNEL_SIZE: i32 = %d;\n", pixview.KernelSize)
	fmt.Fprintf(&b, "const ACCUMULATOR_SIZE: i32 = %d;\n", pipeline.AccumulatorSize)
	fmt.Fprintf(&b, "const LUT_SIZE: i32 = %d;\n", pipeline.GammaLUTSize)
	fmt.Fprintf(&b, "const SURFACE_SRGB: bool = %t;\n\n", surfaceSRGB)
	b.Write(prelude)
	b.WriteByte('\n')
	b.Write(body)
	return b.String(), nil
}

// IsSRGB reports whether writes to format are encoded to sRGB by the hardware.
func IsSRGB(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb:
		return true
	}
	return false
}

type entryKey struct {
	id    pipeline.ProgramID
	entry string
}

// Registry holds the compiled render pipeline of every program entry point
// and the bind group layouts of their signatures.
type Registry struct {
	ctx           *Context
	surfaceFormat wgpu.TextureFormat

	paramsLayout       *wgpu.BindGroupLayout
	filterableLayout   *wgpu.BindGroupLayout
	unfilterableLayout *wgpu.BindGroupLayout
	filtering          *wgpu.Sampler
	nonFiltering       *wgpu.Sampler

	modules   [pipeline.NumPrograms]*wgpu.ShaderModule
	layouts   [pipeline.NumPrograms]*wgpu.PipelineLayout
	pipelines map[entryKey]*wgpu.RenderPipeline
}

// NewRegistry builds every program for presentation on surfaces of surfaceFormat.
// Any failure releases what was built and wraps [pixview.ErrShaderCompile].
func NewRegistry(ctx *Context, surfaceFormat wgpu.TextureFormat) (*Registry, error) {
	r := &Registry{ctx: ctx}
	if err := r.initLayouts(); err != nil {
		r.Release()
		return nil, fmt.Errorf("%w: %w", pixview.ErrShaderCompile, err)
	}
	if err := r.Rebuild(surfaceFormat); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initLayouts() (err error) {
	dev := r.ctx.Device
	r.paramsLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "params",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: pixview.UniformsSize,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("params layout: %w", err)
	}
	r.filterableLayout, err = textureLayout(dev, "filterable", wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering)
	if err != nil {
		return err
	}
	r.unfilterableLayout, err = textureLayout(dev, "unfilterable", wgpu.TextureSampleTypeUnfilterableFloat, wgpu.SamplerBindingTypeNonFiltering)
	if err != nil {
		return err
	}
	r.filtering, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "filtering",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("filtering sampler: %w", err)
	}
	r.nonFiltering, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "nonfiltering",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("nonfiltering sampler: %w", err)
	}
	return nil
}

func textureLayout(dev *wgpu.Device, label string, sample wgpu.TextureSampleType, sampler wgpu.SamplerBindingType) (*wgpu.BindGroupLayout, error) {
	layout, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label,
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    sample,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: sampler},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s layout: %w", label, err)
	}
	return layout, nil
}

// Rebuild recompiles every program, for instance after the surface format changed.
// On failure the previous pipelines are kept.
func (r *Registry) Rebuild(surfaceFormat wgpu.TextureFormat) error {
	var (
		modules   [pipeline.NumPrograms]*wgpu.ShaderModule
		layouts   [pipeline.NumPrograms]*wgpu.PipelineLayout
		pipelines = make(map[entryKey]*wgpu.RenderPipeline)
	)
	release := func() {
		for _, p := range pipelines {
			p.Release()
		}
		for i := range modules {
			if layouts[i] != nil {
				layouts[i].Release()
			}
			if modules[i] != nil {
				modules[i].Release()
			}
		}
	}
	for id := range pipeline.NumPrograms {
		sig := &pipeline.Programs[id]
		code, err := ProgramSource(id, IsSRGB(surfaceFormat))
		if err != nil {
			release()
			return fmt.Errorf("%w: %s: %w", pixview.ErrShaderCompile, sig.Name, err)
		}
		modules[id], err = r.ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          sig.Name,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
		})
		if err != nil {
			release()
			return fmt.Errorf("%w: %s shader module: %w", pixview.ErrShaderCompile, sig.Name, err)
		}
		layouts[id], err = r.ctx.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            sig.Name,
			BindGroupLayouts: r.bindGroupLayouts(sig),
		})
		if err != nil {
			release()
			return fmt.Errorf("%w: %s pipeline layout: %w", pixview.ErrShaderCompile, sig.Name, err)
		}
		for _, entry := range sig.Entries {
			p, err := r.ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
				Label:  sig.Name + "." + entry,
				Layout: layouts[id],
				Vertex: wgpu.VertexState{
					Module:     modules[id],
					EntryPoint: "vs_main",
				},
				Fragment: &wgpu.FragmentState{
					Module:     modules[id],
					EntryPoint: entry,
					Targets: []wgpu.ColorTargetState{{
						Format:    r.outputFormat(sig.Output, surfaceFormat),
						WriteMask: wgpu.ColorWriteMaskAll,
					}},
				},
				Primitive: wgpu.PrimitiveState{
					Topology:  wgpu.PrimitiveTopologyTriangleList,
					FrontFace: wgpu.FrontFaceCCW,
					CullMode:  wgpu.CullModeNone,
				},
				Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
			})
			if err != nil {
				release()
				return fmt.Errorf("%w: %s.%s render pipeline: %w", pixview.ErrShaderCompile, sig.Name, entry, err)
			}
			pipelines[entryKey{id, entry}] = p
		}
	}
	err := pipeline.CheckRegistry(func(id pipeline.ProgramID, entry string) bool {
		return pipelines[entryKey{id, entry}] != nil
	})
	if err != nil {
		release()
		return err
	}
	r.releasePipelines()
	r.modules, r.layouts, r.pipelines = modules, layouts, pipelines
	r.surfaceFormat = surfaceFormat
	r.ctx.log.Debug().Int("pipelines", len(pipelines)).Uint32("surface", uint32(surfaceFormat)).Msg("pipelines built")
	return nil
}

func (r *Registry) bindGroupLayouts(sig *pipeline.Signature) []*wgpu.BindGroupLayout {
	layouts := []*wgpu.BindGroupLayout{r.paramsLayout}
	for _, b := range []pipeline.Binding{sig.Primary, sig.Secondary} {
		if b == pipeline.BindNone {
			break
		}
		layouts = append(layouts, r.textureLayout(b))
	}
	return layouts
}

func (r *Registry) textureLayout(b pipeline.Binding) *wgpu.BindGroupLayout {
	switch b {
	case pipeline.BindSource, pipeline.BindDisplay:
		return r.filterableLayout
	case pipeline.BindHDR:
		return r.unfilterableLayout
	}
	panic("no texture layout for binding")
}

// layoutFor returns the texture bind group layout and sampler of a stage format.
func (r *Registry) layoutFor(f pipeline.Format) (*wgpu.BindGroupLayout, *wgpu.Sampler) {
	switch f {
	case pipeline.FormatHDR:
		return r.unfilterableLayout, r.nonFiltering
	case pipeline.FormatDisplay:
		return r.filterableLayout, r.filtering
	}
	panic("unknown stage format")
}

func (r *Registry) outputFormat(o pipeline.Output, surface wgpu.TextureFormat) wgpu.TextureFormat {
	switch o {
	case pipeline.OutputHDR:
		return hdrTextureFormat
	case pipeline.OutputDisplay:
		return displayTextureFormat
	case pipeline.OutputSurface:
		return surface
	}
	panic("unknown program output")
}

// SurfaceFormat returns the format the output program renders to.
func (r *Registry) SurfaceFormat() wgpu.TextureFormat { return r.surfaceFormat }

func (r *Registry) pipeline(id pipeline.ProgramID, entry string) *wgpu.RenderPipeline {
	return r.pipelines[entryKey{id, entry}]
}

func (r *Registry) releasePipelines() {
	for _, p := range r.pipelines {
		p.Release()
	}
	r.pipelines = nil
	for i := range r.modules {
		if r.layouts[i] != nil {
			r.layouts[i].Release()
			r.layouts[i] = nil
		}
		if r.modules[i] != nil {
			r.modules[i].Release()
			r.modules[i] = nil
		}
	}
}

// Release releases every pipeline, layout and sampler.
func (r *Registry) Release() {
	r.releasePipelines()
	for _, l := range []*wgpu.BindGroupLayout{r.paramsLayout, r.filterableLayout, r.unfilterableLayout} {
		if l != nil {
			l.Release()
		}
	}
	for _, s := range []*wgpu.Sampler{r.filtering, r.nonFiltering} {
		if s != nil {
			s.Release()
		}
	}
	r.paramsLayout, r.filterableLayout, r.unfilterableLayout = nil, nil, nil
	r.filtering, r.nonFiltering = nil, nil
}

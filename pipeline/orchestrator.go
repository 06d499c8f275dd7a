package pipeline

import (
	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
)

// ChainState is the state of the cached filter chain.
type ChainState uint8

const (
	// Idle means the filter chain outputs match the current parameters.
	Idle ChainState = iota
	// Recompute means the filter chain must run before the next composite.
	Recompute
)

func (s ChainState) String() string {
	if s == Idle {
		return "idle"
	}
	return "recompute"
}

// Stats counts the work done by an [Orchestrator].
type Stats struct {
	Frames        int
	Recomputes    int
	ParamUploads  int
	KernelUploads int
}

// Orchestrator decides each frame whether the filter chain must run again
// and records the passes in dependency order:
//
//	interpolate → gamma LUT → [kernel → min/max → normalize] → gamma apply → output
//
// The output pass runs every frame. The others run only after a change of
// scale, gamma, scaling mode, cross-correlation, kernel or source image.
type Orchestrator struct {
	backend Backend
	targets *Targets
	log     zerolog.Logger

	state   ChainState
	source  Source
	key     pixview.ChainKey
	current pixview.Uniforms
	// uploaded is false until current and kernel reflect device state.
	uploaded       bool
	kernel         pixview.Kernel
	kernelUploaded bool
	stats          Stats
}

// NewOrchestrator returns an orchestrator executing on b. No source image is loaded.
func NewOrchestrator(b Backend) *Orchestrator {
	return &Orchestrator{
		backend: b,
		targets: NewTargets(b),
		log:     pixview.ComponentLogger("pipeline"),
		state:   Recompute,
	}
}

// State returns the filter chain state.
func (o *Orchestrator) State() ChainState { return o.state }

// Stats returns counters of the work recorded so far.
func (o *Orchestrator) Stats() Stats { return o.stats }

// Targets returns the render target manager.
func (o *Orchestrator) Targets() *Targets { return o.targets }

// HasSource reports whether a source image was loaded.
func (o *Orchestrator) HasSource() bool { return o.source != nil }

// Invalidate forces the filter chain to run on the next frame.
// It is the "mark changed" hook of the settings overlay.
func (o *Orchestrator) Invalidate() { o.state = Recompute }

// SetSource uploads img and replaces the current source image. On failure
// the previous source image stays in use.
func (o *Orchestrator) SetSource(img *pixview.SourceImage) error {
	src, err := o.backend.LoadSource(img)
	if err != nil {
		return err
	}
	if o.source != nil {
		o.source.Release()
	}
	o.source = src
	o.state = Recompute
	o.log.Info().Str("name", img.Name).Stringer("size", src.Size()).Msg("source image loaded")
	return nil
}

// DestinationSize returns the interpolated resolution for p, clamping p.Scale
// to the device limits first. The second result reports a clamped scale.
// The zero Size is returned while no source is set.
func (o *Orchestrator) DestinationSize(p *pixview.Params) (Size, bool) {
	if o.source == nil {
		return Size{}, false
	}
	src := o.source.Size()
	maxDim := o.backend.Limits().MaxTextureDimension
	limited := p.ClampScale(pixview.MaxScale(src.Width, src.Height, maxDim))
	w, h := pixview.DestinationSize(src.Width, src.Height, p.Scale, maxDim)
	return Size{Width: w, Height: h}, limited
}

// Record records the commands of one frame rendering into target. p.Scale
// and p.Gamma are clamped in place to valid ranges.
func (o *Orchestrator) Record(p *pixview.Params, target Target) (*Frame, error) {
	if o.source == nil {
		return nil, pixview.ErrNoSource
	}
	dst, limited := o.DestinationSize(p)
	if limited {
		o.log.Warn().Err(pixview.ErrResourceLimit).Float32("scale", p.Scale).Msg("scale clamped to device maximum")
	}
	key := p.ChainKey()
	if key != o.key {
		o.state = Recompute
	}
	allocations := o.targets.Allocations()
	set, err := o.targets.Ensure(dst)
	if err != nil {
		return nil, err
	} else if o.targets.Allocations() != allocations {
		o.state = Recompute
	}

	f := &Frame{Stages: set, Source: o.source, Target: target}
	src := o.source.Size()
	u := p.Uniforms(src.Width, src.Height, dst.Width, dst.Height)
	if !o.uploaded || u != o.current {
		f.WriteParams(u)
		o.current = u
		o.uploaded = true
		o.stats.ParamUploads++
	}
	if o.state == Recompute {
		if p.CrossCorrelation && (!o.kernelUploaded || p.Kernel != o.kernel) {
			f.WriteKernel(p.Kernel)
			o.kernel = p.Kernel
			o.kernelUploaded = true
			o.stats.KernelUploads++
		}
		recordChain(&f.Recording, p.CrossCorrelation)
		o.key = key
		o.state = Idle
		o.stats.Recomputes++
		o.log.Debug().Stringer("size", dst).Bool("crosscorrelation", p.CrossCorrelation).Msg("filter chain recorded")
	}
	bg := p.Background
	f.Draw(Draw{Program: ProgramOutput, Output: TargetSlot, Primary: StageSlot(RoleGammaCorrected), Clear: &bg})
	o.stats.Frames++
	return f, nil
}

func recordChain(rec *Recording, crossCorrelation bool) {
	rec.Draw(Draw{Program: ProgramInterpolate, Output: StageSlot(RoleInterpolated), Primary: SourceSlot})
	rec.Draw(Draw{Program: ProgramGammaLUT, Output: StageSlot(RoleGammaLUT)})
	tone := StageSlot(RoleInterpolated)
	if crossCorrelation {
		rec.Draw(Draw{Program: ProgramKernel, Output: StageSlot(RoleKerneled), Primary: StageSlot(RoleInterpolated), Secondary: KernelSlot})
		layer := 0
		rec.Draw(Draw{Program: ProgramMinMax, Entry: EntryBlock, Output: LayerSlot(RoleMinMax, layer), Primary: StageSlot(RoleKerneled)})
		for n := AccumulatorSize; n > 1; n /= 2 {
			rec.Draw(Draw{Program: ProgramMinMax, Entry: EntryHalve, Output: LayerSlot(RoleMinMax, 1-layer), Primary: LayerSlot(RoleMinMax, layer)})
			layer = 1 - layer
		}
		rec.Draw(Draw{Program: ProgramNormalize, Output: StageSlot(RoleOutputStaging), Primary: StageSlot(RoleKerneled), Secondary: LayerSlot(RoleMinMax, layer)})
		tone = StageSlot(RoleOutputStaging)
	}
	rec.Draw(Draw{Program: ProgramGammaApply, Output: StageSlot(RoleGammaCorrected), Primary: tone, Secondary: StageSlot(RoleGammaLUT)})
}

// Render records and executes one frame. When execution fails the chain
// is marked for recompute so no stale stage is composited later.
func (o *Orchestrator) Render(p *pixview.Params, target Target) error {
	f, err := o.Record(p, target)
	if err != nil {
		return err
	}
	if err := o.backend.Execute(f); err != nil {
		o.state = Recompute
		o.uploaded = false
		o.kernelUploaded = false
		return err
	}
	return nil
}

// Release frees the source image and every stage.
func (o *Orchestrator) Release() {
	o.targets.Release()
	if o.source != nil {
		o.source.Release()
		o.source = nil
	}
	o.state = Recompute
}

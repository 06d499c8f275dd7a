package pixview

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

const (
	// MinScale is the smallest zoom factor, keeping destination sizes non-degenerate.
	MinScale float32 = 0.001
	// MinGamma avoids a division by zero in the gamma table.
	MinGamma float32 = 0.01
	// MaxGamma is the upper bound offered by the gamma control.
	MaxGamma float32 = 5
	// MaxScaleControl is the upper bound offered by the scale control. The
	// effective upper bound also depends on the device, see [Params.ClampScale].
	MaxScaleControl float32 = 10
	// KernelSize is the side length of the cross-correlation kernel.
	KernelSize = 5
	// KernelLen is the number of weights in a kernel.
	KernelLen = KernelSize * KernelSize
)

// ScalingMode selects the resampling filter of the interpolation pass.
type ScalingMode uint32

const (
	NearestNeighbour ScalingMode = iota // nearest
	Bilinear                            // bilinear
)

func (m ScalingMode) String() string {
	switch m {
	case NearestNeighbour:
		return "nearest"
	case Bilinear:
		return "bilinear"
	}
	return "ScalingMode(?)"
}

// ParseScalingMode parses the output of [ScalingMode.String].
func ParseScalingMode(s string) (ScalingMode, bool) {
	for _, m := range []ScalingMode{NearestNeighbour, Bilinear} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Kernel is a 5×5 matrix of signed weights indexed [row][column].
type Kernel [KernelSize][KernelSize]float32

// DefaultKernel is a sharpening kernel: a Laplacian added onto the identity.
var DefaultKernel = Kernel{
	{0, 0, 0, 0, 0},
	{0, 0, -1, 0, 0},
	{0, -1, 5, -1, 0},
	{0, 0, -1, 0, 0},
	{0, 0, 0, 0, 0},
}

// IdentityKernel leaves an image unchanged.
var IdentityKernel = Kernel{2: {2: 1}}

// Flat returns the kernel weights in row-major order.
func (k *Kernel) Flat() (flat [KernelLen]float32) {
	for j := range k {
		copy(flat[j*KernelSize:], k[j][:])
	}
	return flat
}

// Params holds every user tunable value of the viewer. Params is comparable;
// two Params are equal when nothing needs to be uploaded again.
type Params struct {
	// WindowSize is the size of the presentation surface in pixels.
	WindowSize ms2.Vec
	// Pan is the offset of the image from its centered position, in pixels.
	Pan ms2.Vec
	// Scale is the zoom factor applied to the source image.
	Scale float32
	// Gamma of the tone curve applied as i^(1/Gamma). Values above 1 brighten.
	Gamma            float32
	Scaling          ScalingMode
	CrossCorrelation bool
	// Background is the linear RGBA color the image is composited over.
	Background [4]float32
	Kernel     Kernel
}

// DefaultParams returns the startup parameters of the viewer.
func DefaultParams() Params {
	return Params{
		WindowSize: ms2.Vec{X: 1000, Y: 1000},
		Scale:      1,
		Gamma:      1,
		Scaling:    NearestNeighbour,
		Background: [4]float32{0, 0, 0, 1},
		Kernel:     DefaultKernel,
	}
}

// Reset restores the defaults while keeping the window size.
func (p *Params) Reset() {
	win := p.WindowSize
	*p = DefaultParams()
	p.WindowSize = win
}

// ChainKey is the subset of [Params] the cached filter chain depends on.
// Pan, window size and background only affect the final composite.
type ChainKey struct {
	Scale            float32
	Gamma            float32
	Scaling          ScalingMode
	CrossCorrelation bool
	Kernel           Kernel
}

// ChainKey returns the values that invalidate the filter chain when changed.
func (p *Params) ChainKey() ChainKey {
	return ChainKey{
		Scale:            p.Scale,
		Gamma:            p.Gamma,
		Scaling:          p.Scaling,
		CrossCorrelation: p.CrossCorrelation,
		Kernel:           p.Kernel,
	}
}

// MaxScale returns the largest scale at which an image of width×height
// still fits in a texture of side maxDim.
func MaxScale(width, height, maxDim int) float32 {
	return float32(maxDim) / float32(max(width, height, 1))
}

// ClampScale restricts Scale to [MinScale, maxScale] and the gamma to
// [MinGamma, +inf). It reports whether the scale had to be lowered to maxScale.
func (p *Params) ClampScale(maxScale float32) (limited bool) {
	if p.Gamma < MinGamma || math32.IsNaN(p.Gamma) {
		p.Gamma = MinGamma
	}
	if p.Scale < MinScale || math32.IsNaN(p.Scale) {
		p.Scale = MinScale
	}
	if p.Scale > maxScale {
		p.Scale = maxScale
		limited = true
	}
	return limited
}

// DestinationSize returns the interpolated image size of a width×height
// source at the given scale. Each side is at least 1 and at most maxDim.
func DestinationSize(width, height int, scale float32, maxDim int) (w, h int) {
	side := func(n int) int {
		v := int(math32.Floor(float32(n) * scale))
		return min(max(v, 1), maxDim)
	}
	return side(width), side(height)
}

// Zoom applies a scroll step to the scale following a logarithmic curve
// so zooming feels uniform at every magnification.
func (p *Params) Zoom(scroll float32) {
	p.Scale += scroll * math32.Log10(p.Scale*p.Scale+1.1)
	p.Scale = max(p.Scale, MinScale)
}

// Uniforms packs the parameters into the shader record for a source image of
// size src interpolated into dst.
func (p *Params) Uniforms(srcW, srcH, dstW, dstH int) Uniforms {
	u := Uniforms{
		WindowSize:  [2]float32{p.WindowSize.X, p.WindowSize.Y},
		Pan:         [2]float32{p.Pan.X, p.Pan.Y},
		Scale:       p.Scale,
		Gamma:       max(p.Gamma, MinGamma),
		ScalingMode: uint32(p.Scaling),
		Background:  p.Background,
		SourceSize:  [2]float32{float32(srcW), float32(srcH)},
		TargetSize:  [2]float32{float32(dstW), float32(dstH)},
	}
	if p.CrossCorrelation {
		u.CrossCorrelation = 1
	}
	flat := p.Kernel.Flat()
	copy(u.Kernel[:], flat[:])
	return u
}

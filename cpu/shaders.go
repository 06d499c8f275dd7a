package cpu

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// fragment computes the output texel at x,y. Returning false discards it.
type fragment func(c *invocation, x, y int) ([4]float32, bool)

// invocation holds the bindings of one draw.
type invocation struct {
	u         *pixview.Uniforms
	primary   reader
	secondary reader
	out       pipeline.Size
}

type entryKey struct {
	id    pipeline.ProgramID
	entry string
}

// programs mirrors the WGSL programs of the gpu package.
var programs = map[entryKey]fragment{
	{pipeline.ProgramInterpolate, pipeline.EntryMain}: interpolate,
	{pipeline.ProgramKernel, pipeline.EntryMain}:      crossCorrelate,
	{pipeline.ProgramMinMax, pipeline.EntryBlock}:     minMaxBlock,
	{pipeline.ProgramMinMax, pipeline.EntryHalve}:     minMaxHalve,
	{pipeline.ProgramNormalize, pipeline.EntryMain}:   normalize,
	{pipeline.ProgramGammaLUT, pipeline.EntryMain}:    gammaLUT,
	{pipeline.ProgramGammaApply, pipeline.EntryMain}:  gammaApply,
	{pipeline.ProgramOutput, pipeline.EntryMain}:      compose,
}

func interpolate(c *invocation, x, y int) ([4]float32, bool) {
	src := c.primary.size()
	sx := float32(src.Width) / float32(c.out.Width)
	sy := float32(src.Height) / float32(c.out.Height)
	switch pixview.ScalingMode(c.u.ScalingMode) {
	case pixview.Bilinear:
		px := (float32(x)+0.5)*sx - 0.5
		py := (float32(y)+0.5)*sy - 0.5
		x0, y0 := math32.Floor(px), math32.Floor(py)
		fx, fy := px-x0, py-y0
		ix, iy := int(x0), int(y0)
		top := mix(c.primary.load(ix, iy), c.primary.load(ix+1, iy), fx)
		bottom := mix(c.primary.load(ix, iy+1), c.primary.load(ix+1, iy+1), fx)
		return mix(top, bottom, fy), true
	default:
		ix := int(math32.Floor(float32(x) * sx))
		iy := int(math32.Floor(float32(y) * sy))
		return c.primary.load(ix, iy), true
	}
}

func crossCorrelate(c *invocation, x, y int) ([4]float32, bool) {
	const half = pixview.KernelSize / 2
	var sum [4]float32
	for j := range pixview.KernelSize {
		for i := range pixview.KernelSize {
			w := c.secondary.load(i, j)[0]
			v := c.primary.load(x+i-half, y+j-half)
			sum[0] += w * v[0]
			sum[1] += w * v[1]
			sum[2] += w * v[2]
		}
	}
	sum[3] = c.primary.load(x, y)[3]
	return sum, true
}

// minMaxBlock reduces the block of the input covered by accumulator texel x,y.
// The minimum is stored in R and the maximum in G.
func minMaxBlock(c *invocation, x, y int) ([4]float32, bool) {
	in := c.primary.size()
	bw := (in.Width + c.out.Width - 1) / c.out.Width
	bh := (in.Height + c.out.Height - 1) / c.out.Height
	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for yy := y * bh; yy < min((y+1)*bh, in.Height); yy++ {
		for xx := x * bw; xx < min((x+1)*bw, in.Width); xx++ {
			v := c.primary.load(xx, yy)
			lo = min(lo, v[0], v[1], v[2])
			hi = max(hi, v[0], v[1], v[2])
		}
	}
	return [4]float32{lo, hi, 0, 1}, true
}

// minMaxHalve combines 2×2 accumulator texels. After log2(AccumulatorSize)
// halvings texel 0,0 holds the global extrema.
func minMaxHalve(c *invocation, x, y int) ([4]float32, bool) {
	a := c.primary.load(2*x, 2*y)
	b := c.primary.load(2*x+1, 2*y)
	d := c.primary.load(2*x, 2*y+1)
	e := c.primary.load(2*x+1, 2*y+1)
	return [4]float32{min(a[0], b[0], d[0], e[0]), max(a[1], b[1], d[1], e[1]), 0, 1}, true
}

func normalize(c *invocation, x, y int) ([4]float32, bool) {
	mm := c.secondary.load(0, 0)
	lo, span := mm[0], max(mm[1]-mm[0], 1e-6)
	v := c.primary.load(x, y)
	for i := range 3 {
		v[i] = clamp((v[i]-lo)/span, 0, 1)
	}
	v[3] = clamp(v[3], 0, 1)
	return v, true
}

func gammaLUT(c *invocation, x, _ int) ([4]float32, bool) {
	t := float32(x) / (pipeline.GammaLUTSize - 1)
	v := math32.Pow(t, 1/c.u.Gamma)
	return [4]float32{v, v, v, 1}, true
}

func gammaApply(c *invocation, x, y int) ([4]float32, bool) {
	v := c.primary.load(x, y)
	for i := range 3 {
		t := clamp(v[i], 0, 1) * (pipeline.GammaLUTSize - 1)
		i0 := math32.Floor(t)
		lo := c.secondary.load(int(i0), 0)[0]
		hi := c.secondary.load(int(i0)+1, 0)[0]
		v[i] = lo + (hi-lo)*(t-i0)
	}
	v[3] = clamp(v[3], 0, 1)
	return v, true
}

// compose places the image centered in the window, offset by the pan,
// over the background color.
func compose(c *invocation, x, y int) ([4]float32, bool) {
	img := c.primary.size()
	ox := math32.Floor((c.u.WindowSize[0]-float32(img.Width))/2) + c.u.Pan[0]
	oy := math32.Floor((c.u.WindowSize[1]-float32(img.Height))/2) + c.u.Pan[1]
	tx := int(math32.Floor(float32(x) + 0.5 - ox))
	ty := int(math32.Floor(float32(y) + 0.5 - oy))
	if tx < 0 || ty < 0 || tx >= img.Width || ty >= img.Height {
		return [4]float32{}, false
	}
	v := c.primary.load(tx, ty)
	bg := c.u.Background
	a := v[3]
	return [4]float32{
		v[0]*a + bg[0]*(1-a),
		v[1]*a + bg[1]*(1-a),
		v[2]*a + bg[2]*(1-a),
		a + bg[3]*(1-a),
	}, true
}

func mix(a, b [4]float32, t float32) [4]float32 {
	for i := range a {
		a[i] += (b[i] - a[i]) * t
	}
	return a
}

package cpu

import (
	"bytes"
	"image"
	"image/png"
	"math/rand"
	"os"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// randomSquares returns an opaque image with random colored squares on black,
// with a black and a white texel so the value range spans [0,1].
func randomSquares(rng *rand.Rand, width, height, numSquares, minSize, maxSize int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	for range numSquares {
		size := minSize + rng.Intn(maxSize-minSize+1)
		x0, y0 := rng.Intn(width), rng.Intn(height)
		r, g, b := uint8(64+rng.Intn(192)), uint8(64+rng.Intn(192)), uint8(64+rng.Intn(192))
		for y := y0; y < min(y0+size, height); y++ {
			for x := x0; x < min(x0+size, width); x++ {
				off := img.PixOffset(x, y)
				copy(img.Pix[off:off+4], []byte{r, g, b, 255})
			}
		}
	}
	copy(img.Pix[img.PixOffset(0, 0):], []byte{0, 0, 0, 255})
	copy(img.Pix[img.PixOffset(width-1, height-1):], []byte{255, 255, 255, 255})
	return img
}

func savePNG(img image.Image, path string) error {
	if err := os.MkdirAll("testdata", 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// render draws a single frame of src into a width×height canvas.
func render(t *testing.T, src *image.NRGBA, width, height int, set func(p *pixview.Params)) *image.RGBA {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	b, err := New(Config{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	canvas := NewCanvas(width, height)
	d, err := pipeline.NewDriver(b, canvas, width, height, pipeline.DriverConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()
	if err := d.SetSource("test.png", buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if set != nil {
		set(&d.Params)
	}
	if err := d.Frame(); err != nil {
		t.Fatal(err)
	}
	return canvas.Image()
}

func texelAt(pix []byte, off int) [4]uint8 { return [4]uint8(pix[off : off+4]) }

func TestIdentityRender(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := randomSquares(rng, 100, 100, 20, 5, 30)
	got := render(t, src, 100, 100, nil)
	if err := savePNG(got, "testdata/identity_cpu_output.png"); err != nil {
		t.Logf("failed to save output: %v", err)
	}
	if !bytes.Equal(got.Pix, src.Pix) {
		for y := range 100 {
			for x := range 100 {
				if g, w := texelAt(got.Pix, got.PixOffset(x, y)), texelAt(src.Pix, src.PixOffset(x, y)); g != w {
					t.Fatalf("texel (%d,%d) = %v, want %v", x, y, g, w)
				}
			}
		}
	}
}

func TestNearestHalfScale(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := randomSquares(rng, 100, 100, 30, 1, 10)
	got := render(t, src, 50, 50, func(p *pixview.Params) {
		p.Scale = 0.5
		p.Scaling = pixview.NearestNeighbour
	})
	for y := range 50 {
		for x := range 50 {
			g, w := texelAt(got.Pix, got.PixOffset(x, y)), texelAt(src.Pix, src.PixOffset(2*x, 2*y))
			if g != w {
				t.Fatalf("texel (%d,%d) = %v, want source (%d,%d) %v", x, y, g, 2*x, 2*y, w)
			}
		}
	}
}

func TestIdentityKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src := randomSquares(rng, 64, 48, 10, 4, 20)
	for _, gamma := range []float32{1, 0.6, 2.2} {
		plain := render(t, src, 64, 48, func(p *pixview.Params) { p.Gamma = gamma })
		filtered := render(t, src, 64, 48, func(p *pixview.Params) {
			p.Gamma = gamma
			p.CrossCorrelation = true
			p.Kernel = pixview.IdentityKernel
		})
		if !bytes.Equal(plain.Pix, filtered.Pix) {
			t.Errorf("gamma %v: identity kernel changed the image", gamma)
		}
	}
}

func TestGammaBrightens(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	copy(src.Pix, []byte{128, 128, 128, 255, 255, 255, 255, 255})
	got := render(t, src, 2, 1, func(p *pixview.Params) { p.Gamma = 2 })
	if got.Pix[0] <= 128 {
		t.Errorf("gamma 2 did not brighten mid gray: %d", got.Pix[0])
	}
	if got.Pix[4] != 255 {
		t.Errorf("white changed: %d", got.Pix[4])
	}
}

func TestComposeCenterPanBackground(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{255, 255, 255, 255})
	}
	got := render(t, src, 6, 6, func(p *pixview.Params) {
		p.Pan.X = 1
		p.Background = [4]float32{0, 0, 1, 1}
	})
	for y := range 6 {
		for x := range 6 {
			inside := x >= 3 && x < 5 && y >= 2 && y < 4
			want := [4]uint8{0, 0, 255, 255}
			if inside {
				want = [4]uint8{255, 255, 255, 255}
			}
			if g := texelAt(got.Pix, got.PixOffset(x, y)); g != want {
				t.Errorf("texel (%d,%d) = %v, want %v", x, y, g, want)
			}
		}
	}
}

func TestGammaLUTIdentity(t *testing.T) {
	b, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	targets := pipeline.NewTargets(b)
	defer targets.Release()
	set, err := targets.Ensure(pipeline.Size{Width: 1, Height: 1})
	if err != nil {
		t.Fatal(err)
	}
	p := pixview.DefaultParams()
	f := &pipeline.Frame{Stages: set}
	f.WriteParams(p.Uniforms(1, 1, 1, 1))
	f.Draw(pipeline.Draw{Program: pipeline.ProgramGammaLUT, Output: pipeline.StageSlot(pipeline.RoleGammaLUT)})
	if err := b.Execute(f); err != nil {
		t.Fatal(err)
	}
	lut := set.Stage(pipeline.RoleGammaLUT).(*Stage)
	for i := range pipeline.GammaLUTSize {
		want := float32(i) / (pipeline.GammaLUTSize - 1)
		if got := lut.At(0, i, 0)[0]; math32.Abs(got-want) > 1e-6 {
			t.Errorf("lut[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	img := newTexture(pipeline.Size{Width: 3, Height: 1}, pipeline.FormatHDR, 1)
	img.store(0, 0, 0, [4]float32{-2, -2, -2, 1})
	img.store(0, 1, 0, [4]float32{1, 1, 1, 1})
	img.store(0, 2, 0, [4]float32{4, 7, 4, 1})
	extrema := newTexture(pipeline.Size{Width: 1, Height: 1}, pipeline.FormatHDR, 1)
	extrema.store(0, 0, 0, [4]float32{-2, 4, 0, 1})
	inv := invocation{u: &pixview.Uniforms{}, primary: reader{tex: img}, secondary: reader{tex: extrema}, out: img.size}
	want := [][4]float32{{0, 0, 0, 1}, {0.5, 0.5, 0.5, 1}, {1, 1, 1, 1}}
	for x, w := range want {
		if got, _ := normalize(&inv, x, 0); got != w {
			t.Errorf("normalize texel %d = %v, want %v", x, got, w)
		}
	}
	// Constant images do not divide by zero.
	extrema.store(0, 0, 0, [4]float32{1, 1, 0, 1})
	if got, _ := normalize(&inv, 1, 0); got != ([4]float32{0, 0, 0, 1}) {
		t.Errorf("flat normalize = %v", got)
	}
}

func TestMinMaxReduction(t *testing.T) {
	b, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	targets := pipeline.NewTargets(b)
	defer targets.Release()
	const w, h = 37, 21
	set, err := targets.Ensure(pipeline.Size{Width: w, Height: h})
	if err != nil {
		t.Fatal(err)
	}
	kerneled := set.Stage(pipeline.RoleKerneled).(*Stage)
	rng := rand.New(rand.NewSource(1))
	lo, hi := float32(10), float32(-10)
	for y := range h {
		for x := range w {
			v := rng.Float32()*6 - 3
			lo, hi = min(lo, v), max(hi, v)
			kerneled.Set(0, x, y, [4]float32{v, v, v, 1})
		}
	}
	p := pixview.DefaultParams()
	f := &pipeline.Frame{Stages: set}
	f.WriteParams(p.Uniforms(w, h, w, h))
	layer := 0
	f.Draw(pipeline.Draw{Program: pipeline.ProgramMinMax, Entry: pipeline.EntryBlock, Output: pipeline.LayerSlot(pipeline.RoleMinMax, 0), Primary: pipeline.StageSlot(pipeline.RoleKerneled)})
	for n := pipeline.AccumulatorSize; n > 1; n /= 2 {
		f.Draw(pipeline.Draw{Program: pipeline.ProgramMinMax, Entry: pipeline.EntryHalve, Output: pipeline.LayerSlot(pipeline.RoleMinMax, 1-layer), Primary: pipeline.LayerSlot(pipeline.RoleMinMax, layer)})
		layer = 1 - layer
	}
	if err := b.Execute(f); err != nil {
		t.Fatal(err)
	}
	mm := set.Stage(pipeline.RoleMinMax).(*Stage).At(layer, 0, 0)
	if mm[0] != lo || mm[1] != hi {
		t.Errorf("extrema = %v..%v, want %v..%v", mm[0], mm[1], lo, hi)
	}
}

func TestLoadSourceLimit(t *testing.T) {
	b, err := New(Config{MaxTextureDimension: 16})
	if err != nil {
		t.Fatal(err)
	}
	img, err := pixview.NewSourceImage(image.NewNRGBA(image.Rect(0, 0, 32, 8)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.LoadSource(img); err == nil {
		t.Error("oversized source accepted")
	}
}

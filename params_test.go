package pixview

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/geometry/ms2"
)

func TestDestinationSize(t *testing.T) {
	tests := []struct {
		w, h   int
		scale  float32
		maxDim int
		wantW  int
		wantH  int
	}{
		{100, 100, 1, 8192, 100, 100},
		{100, 100, 0.5, 8192, 50, 50},
		{101, 33, 0.5, 8192, 50, 16},
		{100, 100, 0.001, 8192, 1, 1},
		{4000, 2000, 4, 8192, 8192, 8000},
	}
	for _, tt := range tests {
		w, h := DestinationSize(tt.w, tt.h, tt.scale, tt.maxDim)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("DestinationSize(%d,%d,%v,%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.scale, tt.maxDim, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestDestinationSizeMonotonic(t *testing.T) {
	const w, h = 137, 59
	prevW, prevH := 0, 0
	for scale := MinScale; scale < 8; scale *= 1.07 {
		dw, dh := DestinationSize(w, h, scale, 8192)
		if dw < 1 || dh < 1 {
			t.Fatalf("scale %v: zero sized destination %dx%d", scale, dw, dh)
		}
		if dw < prevW || dh < prevH {
			t.Fatalf("scale %v: destination shrank from %dx%d to %dx%d", scale, prevW, prevH, dw, dh)
		}
		prevW, prevH = dw, dh
	}
}

func TestClampScale(t *testing.T) {
	p := DefaultParams()
	p.Scale = 100
	maxScale := MaxScale(1000, 500, 8192)
	if !p.ClampScale(maxScale) {
		t.Error("expected scale to be limited")
	}
	if p.Scale != maxScale {
		t.Errorf("scale = %v, want %v", p.Scale, maxScale)
	}
	w, h := DestinationSize(1000, 500, p.Scale, 8192)
	if w > 8192 || h > 8192 {
		t.Errorf("clamped destination %dx%d exceeds limit", w, h)
	}

	p.Scale = float32(math.NaN())
	p.Gamma = -1
	if p.ClampScale(maxScale) {
		t.Error("NaN scale reported as limited")
	}
	if p.Scale != MinScale || p.Gamma != MinGamma {
		t.Errorf("got scale %v gamma %v, want %v %v", p.Scale, p.Gamma, MinScale, MinGamma)
	}
}

func TestZoom(t *testing.T) {
	p := DefaultParams()
	p.Zoom(1)
	if p.Scale <= 1 {
		t.Errorf("zoom in: scale %v not increased", p.Scale)
	}
	for range 1000 {
		p.Zoom(-1)
	}
	if p.Scale < MinScale {
		t.Errorf("scale %v below minimum", p.Scale)
	}
}

func TestChainKeyIgnoresPan(t *testing.T) {
	p := DefaultParams()
	key := p.ChainKey()
	p.Pan = ms2.Vec{X: 10, Y: -4}
	p.WindowSize = ms2.Vec{X: 3, Y: 3}
	p.Background = [4]float32{1, 0, 0, 1}
	if diff := cmp.Diff(key, p.ChainKey()); diff != "" {
		t.Errorf("chain key changed by composite only fields (-want +got):\n%s", diff)
	}
	p.Kernel[0][0] = 1
	if p.ChainKey() == key {
		t.Error("kernel edit did not change the chain key")
	}
}

func TestReset(t *testing.T) {
	p := DefaultParams()
	p.WindowSize = ms2.Vec{X: 320, Y: 200}
	p.Scale = 3
	p.CrossCorrelation = true
	p.Reset()
	want := DefaultParams()
	want.WindowSize = ms2.Vec{X: 320, Y: 200}
	if p != want {
		t.Errorf("Reset() = %+v, want %+v", p, want)
	}
}

func TestParseScalingMode(t *testing.T) {
	for _, m := range []ScalingMode{NearestNeighbour, Bilinear} {
		got, ok := ParseScalingMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseScalingMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseScalingMode("bicubic"); ok {
		t.Error("parsed unknown mode")
	}
}

func TestKernelFlat(t *testing.T) {
	flat := IdentityKernel.Flat()
	for i, w := range flat {
		want := float32(0)
		if i == KernelLen/2 {
			want = 1
		}
		if w != want {
			t.Errorf("flat[%d] = %v, want %v", i, w, want)
		}
	}
}

package pixview

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/geometry/ms2"
)

func TestUniformsLayout(t *testing.T) {
	var u Uniforms
	if got := unsafe.Sizeof(u); got != UniformsSize {
		t.Fatalf("sizeof(Uniforms) = %d, want %d", got, UniformsSize)
	}
	if UniformsSize%16 != 0 {
		t.Fatalf("uniform record size %d not 16 byte aligned", UniformsSize)
	}
	offsets := map[string][2]uintptr{
		"window_size":       {unsafe.Offsetof(u.WindowSize), 0},
		"pan":               {unsafe.Offsetof(u.Pan), 8},
		"scale":             {unsafe.Offsetof(u.Scale), 16},
		"gamma":             {unsafe.Offsetof(u.Gamma), 20},
		"scaling_mode":      {unsafe.Offsetof(u.ScalingMode), 24},
		"cross_correlation": {unsafe.Offsetof(u.CrossCorrelation), 28},
		"background":        {unsafe.Offsetof(u.Background), 32},
		"src_size":          {unsafe.Offsetof(u.SourceSize), 48},
		"dst_size":          {unsafe.Offsetof(u.TargetSize), 56},
		"kernel":            {unsafe.Offsetof(u.Kernel), 64},
	}
	for name, off := range offsets {
		if off[0] != off[1] {
			t.Errorf("%s at offset %d, want %d", name, off[0], off[1])
		}
	}
}

func TestUniformsAppendBytes(t *testing.T) {
	p := DefaultParams()
	p.WindowSize = ms2.Vec{X: 640, Y: 480}
	p.Pan = ms2.Vec{X: -3, Y: 7}
	p.Scale = 2
	p.Gamma = 2.2
	p.Scaling = Bilinear
	p.CrossCorrelation = true
	p.Background = [4]float32{0.1, 0.2, 0.3, 1}
	u := p.Uniforms(100, 50, 200, 100)
	b := u.AppendBytes(nil)
	if len(b) != UniformsSize {
		t.Fatalf("marshalled %d bytes, want %d", len(b), UniformsSize)
	}
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
	got := []float32{f32(0), f32(4), f32(8), f32(12), f32(16), f32(20), f32(32), f32(44), f32(48), f32(52), f32(56), f32(60)}
	want := []float32{640, 480, -3, 7, 2, 2.2, 0.1, 1, 100, 50, 200, 100}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("marshalled fields mismatch (-want +got):\n%s", diff)
	}
	if u32(24) != uint32(Bilinear) || u32(28) != 1 {
		t.Errorf("flags = %d, %d", u32(24), u32(28))
	}
	for j := range KernelSize {
		for i := range KernelSize {
			off := 64 + 4*(j*KernelSize+i)
			if f32(off) != DefaultKernel[j][i] || u.Weight(i, j) != DefaultKernel[j][i] {
				t.Errorf("kernel weight (%d,%d) = %v, want %v", i, j, f32(off), DefaultKernel[j][i])
			}
		}
	}
	for off := 64 + 4*KernelLen; off < UniformsSize; off += 4 {
		if u32(off) != 0 {
			t.Errorf("padding at %d not zero", off)
		}
	}
}

func TestUniformsGammaFloor(t *testing.T) {
	p := DefaultParams()
	p.Gamma = 0
	u := p.Uniforms(1, 1, 1, 1)
	if u.Gamma != MinGamma {
		t.Errorf("gamma = %v, want %v", u.Gamma, MinGamma)
	}
}

package pixview

import (
	"testing"

	"github.com/soypat/geometry/ms2"
)

func TestPointerDrag(t *testing.T) {
	p := DefaultParams()
	var in Input
	in.PointerMoved(&p, ms2.Vec{X: 10, Y: 10})
	if p.Pan != (ms2.Vec{}) {
		t.Fatalf("pan changed without drag: %v", p.Pan)
	}
	in.PointerPressed()
	in.PointerMoved(&p, ms2.Vec{X: 15, Y: 8})
	in.PointerMoved(&p, ms2.Vec{X: 20, Y: 8})
	in.PointerReleased()
	in.PointerMoved(&p, ms2.Vec{X: 100, Y: 100})
	if want := (ms2.Vec{X: 10, Y: -2}); p.Pan != want {
		t.Errorf("pan = %v, want %v", p.Pan, want)
	}
}

func TestInputOverUI(t *testing.T) {
	p := DefaultParams()
	in := Input{PointerOverUI: true}
	in.PointerPressed()
	in.PointerMoved(&p, ms2.Vec{X: 5, Y: 5})
	in.Scroll(&p, 3)
	if p != DefaultParams() {
		t.Errorf("events over the overlay edited params: %+v", p)
	}
	in.PointerOverUI = false
	in.Scroll(&p, 1)
	if p.Scale <= 1 {
		t.Errorf("scroll did not zoom: %v", p.Scale)
	}
}

func TestTouchPanAndPinch(t *testing.T) {
	p := DefaultParams()
	var in Input
	in.TouchStart(1, ms2.Vec{X: 0, Y: 0})
	in.TouchMove(&p, 1, ms2.Vec{X: 3, Y: 4})
	if want := (ms2.Vec{X: 3, Y: 4}); p.Pan != want {
		t.Fatalf("one finger pan = %v, want %v", p.Pan, want)
	}
	in.TouchStart(2, ms2.Vec{X: 13, Y: 4})
	if in.Touches() != 2 {
		t.Fatalf("touches = %d", in.Touches())
	}
	// Distance doubles from 10 to 20.
	in.TouchMove(&p, 2, ms2.Vec{X: 23, Y: 4})
	if p.Scale != 2 {
		t.Errorf("pinch scale = %v, want 2", p.Scale)
	}
	in.TouchEnd(1)
	in.TouchEnd(2)
	if in.Touches() != 0 {
		t.Errorf("touches = %d after release", in.Touches())
	}
	in.TouchMove(&p, 2, ms2.Vec{})
	if p.Scale != 2 {
		t.Error("move of released finger edited params")
	}
}

package pixview

import (
	"slices"

	"github.com/soypat/geometry/ms2"
)

// Input translates pointer, touch and scroll events from the window layer into
// pan and zoom edits of [Params]. Events arriving while the pointer is over
// the settings overlay are ignored so dragging a slider does not pan the image.
type Input struct {
	// PointerOverUI is written by the overlay every frame.
	PointerOverUI bool

	pressed bool
	last    ms2.Vec
	touches []touch
}

type touch struct {
	id  uint64
	pos ms2.Vec
}

// PointerPressed starts a drag unless the pointer is over the overlay.
func (in *Input) PointerPressed() {
	in.pressed = !in.PointerOverUI
}

// PointerReleased ends a drag.
func (in *Input) PointerReleased() {
	in.pressed = false
}

// PointerMoved pans p by the pointer delta while dragging.
func (in *Input) PointerMoved(p *Params, pos ms2.Vec) {
	if in.pressed {
		p.Pan = ms2.Add(p.Pan, ms2.Sub(pos, in.last))
	}
	in.last = pos
}

// Scroll zooms p by scroll steps.
func (in *Input) Scroll(p *Params, scroll float32) {
	if in.PointerOverUI {
		return
	}
	p.Zoom(scroll)
}

// TouchStart registers a new finger.
func (in *Input) TouchStart(id uint64, pos ms2.Vec) {
	in.touches = append(in.touches, touch{id: id, pos: pos})
}

// TouchEnd forgets a finger.
func (in *Input) TouchEnd(id uint64) {
	in.touches = slices.DeleteFunc(in.touches, func(t touch) bool { return t.id == id })
}

// Touches returns the number of fingers on the surface.
func (in *Input) Touches() int { return len(in.touches) }

// TouchMove pans p when one finger moves and zooms p when two fingers pinch.
func (in *Input) TouchMove(p *Params, id uint64, pos ms2.Vec) {
	idx := slices.IndexFunc(in.touches, func(t touch) bool { return t.id == id })
	if idx < 0 {
		return
	}
	delta := ms2.Sub(pos, in.touches[idx].pos)
	if !in.PointerOverUI {
		switch len(in.touches) {
		case 1:
			p.Pan = ms2.Add(p.Pan, delta)
		case 2:
			other := in.touches[1-idx].pos
			before := ms2.Norm(ms2.Sub(in.touches[idx].pos, other))
			after := ms2.Norm(ms2.Sub(pos, other))
			if before > 0 {
				p.Scale = max(p.Scale*after/before, MinScale)
			}
		}
	}
	in.touches[idx].pos = pos
}

package pixview

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/soypat/geometry/ms2"
)

// Control represents an editable field of [Params] exposed to the settings overlay.
// A successful ChangeValue writes the field and, for fields the filter chain
// depends on, calls the "mark changed" hook.
type Control interface {
	// Display/human readable name and description.
	Describe() (name, description string)
	// ActualValue returns the current value of the control.
	ActualValue() any
	// ChangeValue attempts to update the ActualValue to newValue.
	ChangeValue(newValue any) error
}

type ControlOrdered[T cmp.Ordered] struct {
	Name        string
	Description string
	Value       T
	Min         T
	Max         T
	Step        T
	OnChange    func(T) error
}

func (co *ControlOrdered[T]) Describe() (name, description string) {
	return co.Name, co.Description
}
func (co *ControlOrdered[T]) ActualValue() any { return co.Value }
func (co *ControlOrdered[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, co.Value)
	}
	if v < co.Min || v > co.Max {
		return fmt.Errorf("new value %v exceeds limits %v..%v", v, co.Min, co.Max)
	}
	return apply(&co.Value, v, co.OnChange)
}

type integer interface {
	~int | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

type enum interface {
	integer
	fmt.Stringer
}

// ControlEnum maps to dropdown kind of list.
type ControlEnum[T enum] struct {
	Name        string
	Description string
	Value       T
	ValidValues []T
	OnChange    func(T) error
}

func (ce *ControlEnum[T]) Describe() (name, description string) {
	return ce.Name, ce.Description
}
func (ce *ControlEnum[T]) ActualValue() any {
	return ce.Value
}
func (ce *ControlEnum[T]) ChangeValue(newValue any) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, ce.Value)
	}
	if !slices.Contains(ce.ValidValues, v) {
		return fmt.Errorf("value %v of %T not valid", v, v)
	}
	return apply(&ce.Value, v, ce.OnChange)
}

// ControlToggle maps to a checkbox.
type ControlToggle struct {
	Name        string
	Description string
	Value       bool
	OnChange    func(bool) error
}

func (ct *ControlToggle) Describe() (name, description string) {
	return ct.Name, ct.Description
}
func (ct *ControlToggle) ActualValue() any { return ct.Value }
func (ct *ControlToggle) ChangeValue(newValue any) error {
	v, ok := newValue.(bool)
	if !ok {
		return fmt.Errorf("new value %T not of type bool", newValue)
	}
	return apply(&ct.Value, v, ct.OnChange)
}

// ControlVec is a pair of numeric text fields.
type ControlVec struct {
	Name        string
	Description string
	Value       ms2.Vec
	OnChange    func(ms2.Vec) error
}

func (cv *ControlVec) Describe() (name, description string) {
	return cv.Name, cv.Description
}
func (cv *ControlVec) ActualValue() any { return cv.Value }
func (cv *ControlVec) ChangeValue(newValue any) error {
	v, ok := newValue.(ms2.Vec)
	if !ok {
		return fmt.Errorf("new value %T not of type ms2.Vec", newValue)
	}
	return apply(&cv.Value, v, cv.OnChange)
}

// ControlKernel is a 5×5 grid of weight fields.
type ControlKernel struct {
	Name        string
	Description string
	Value       Kernel
	OnChange    func(Kernel) error
}

func (ck *ControlKernel) Describe() (name, description string) {
	return ck.Name, ck.Description
}
func (ck *ControlKernel) ActualValue() any { return ck.Value }
func (ck *ControlKernel) ChangeValue(newValue any) error {
	v, ok := newValue.(Kernel)
	if !ok {
		return fmt.Errorf("new value %T not of type Kernel", newValue)
	}
	return apply(&ck.Value, v, ck.OnChange)
}

func apply[T any](dst *T, v T, onChange func(T) error) error {
	if onChange != nil {
		if err := onChange(v); err != nil {
			return err
		}
	}
	*dst = v
	return nil
}

// Controls returns the settings overlay controls bound to the fields of p.
// markChanged is called after every accepted edit of a chain input and may be nil.
// Position edits only move the composite and do not call it.
// p must outlive the returned controls.
func (p *Params) Controls(markChanged func()) []Control {
	changed := func() {
		if markChanged != nil {
			markChanged()
		}
	}
	return []Control{
		&ControlOrdered[float32]{
			Name:        "Gamma",
			Description: "Tone curve exponent, output = input^(1/gamma)",
			Value:       p.Gamma,
			Min:         MinGamma,
			Max:         MaxGamma,
			Step:        0.01,
			OnChange:    bindField(&p.Gamma, changed),
		},
		&ControlOrdered[float32]{
			Name:        "Scale",
			Description: "Zoom factor applied to the source image",
			Value:       p.Scale,
			Min:         MinScale,
			Max:         MaxScaleControl,
			Step:        0.01,
			OnChange:    bindField(&p.Scale, changed),
		},
		&ControlEnum[ScalingMode]{
			Name:        "Scaling mode",
			Description: "Resampling filter used when zooming",
			Value:       p.Scaling,
			ValidValues: []ScalingMode{NearestNeighbour, Bilinear},
			OnChange:    bindField(&p.Scaling, changed),
		},
		&ControlToggle{
			Name:        "Cross-correlation",
			Description: "Convolve with the kernel and normalize contrast",
			Value:       p.CrossCorrelation,
			OnChange:    bindField(&p.CrossCorrelation, changed),
		},
		&ControlKernel{
			Name:        "Kernel",
			Description: "5×5 cross-correlation weights",
			Value:       p.Kernel,
			OnChange:    bindField(&p.Kernel, changed),
		},
		&ControlVec{
			Name:        "Position",
			Description: "Image offset from the window center in pixels",
			Value:       p.Pan,
			OnChange:    bindField(&p.Pan, nil),
		},
	}
}

func bindField[T any](dst *T, changed func()) func(T) error {
	return func(v T) error {
		*dst = v
		if changed != nil {
			changed()
		}
		return nil
	}
}

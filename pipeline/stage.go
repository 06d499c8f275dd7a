package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
)

const (
	// GammaLUTSize is the number of entries of the gamma table.
	GammaLUTSize = 256
	// AccumulatorSize is the side of the square min/max accumulator.
	// It must be a power of two.
	AccumulatorSize = 16
)

// Size is a texture size in texels.
type Size struct {
	Width, Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Role names a stage of a [StageSet].
type Role uint8

const (
	RoleInterpolated   Role = iota // interpolated
	RoleKerneled                   // kerneled
	RoleMinMax                     // minmax
	RoleGammaLUT                   // gammalut
	RoleGammaCorrected             // gammacorrected
	RoleOutputStaging              // outputstaging
	NumRoles
)

func (r Role) String() string {
	switch r {
	case RoleInterpolated:
		return "interpolated"
	case RoleKerneled:
		return "kerneled"
	case RoleMinMax:
		return "minmax"
	case RoleGammaLUT:
		return "gammalut"
	case RoleGammaCorrected:
		return "gammacorrected"
	case RoleOutputStaging:
		return "outputstaging"
	}
	return "role(?)"
}

// Format returns the texel format of the stage. Only the stage sampled by
// the output compose pass uses the display format.
func (r Role) Format() Format {
	if r == RoleGammaCorrected {
		return FormatDisplay
	}
	return FormatHDR
}

// Layers returns the number of array layers of the stage. The min/max
// accumulator ping-pongs between two layers.
func (r Role) Layers() int {
	if r == RoleMinMax {
		return 2
	}
	return 1
}

// Size returns the stage size for a destination resolution.
func (r Role) Size(dst Size) Size {
	switch r {
	case RoleGammaLUT:
		return Size{Width: GammaLUTSize, Height: 1}
	case RoleMinMax:
		return Size{Width: AccumulatorSize, Height: AccumulatorSize}
	}
	return dst
}

// Stage is one intermediate image owned by a backend.
type Stage interface {
	Role() Role
	Size() Size
	Format() Format
	Layers() int
	Release()
}

// Allocator creates stages. Implemented by backends.
type Allocator interface {
	NewStage(role Role, size Size, format Format, layers int) (Stage, error)
}

// StageSet holds the stages for one destination resolution.
type StageSet struct {
	size   Size
	stages [NumRoles]Stage
}

// Size returns the destination resolution shared by the resolution dependent stages.
func (s *StageSet) Size() Size { return s.size }

// Stage returns the stage of the given role.
func (s *StageSet) Stage(r Role) Stage {
	if r >= NumRoles {
		return nil
	}
	return s.stages[r]
}

func (s *StageSet) release() {
	for i, st := range s.stages {
		if st != nil {
			st.Release()
			s.stages[i] = nil
		}
	}
}

var errZeroTarget = errors.New("zero sized render target")

// Targets is the render target manager. It caches the [StageSet] of the
// last requested resolution.
type Targets struct {
	alloc       Allocator
	set         *StageSet
	allocations int
	log         zerolog.Logger
}

// NewTargets returns an empty target manager allocating through alloc.
func NewTargets(alloc Allocator) *Targets {
	return &Targets{alloc: alloc, log: pixview.ComponentLogger("pipeline")}
}

// Ensure returns the stage set for the destination resolution dst. When dst
// matches the cached set it is returned as is. Otherwise a complete new set
// is allocated and the previous one released. dst must not have a zero side.
func (t *Targets) Ensure(dst Size) (*StageSet, error) {
	if dst.Width < 1 || dst.Height < 1 {
		return nil, errZeroTarget
	}
	if t.set != nil && t.set.size == dst {
		return t.set, nil
	}
	set := &StageSet{size: dst}
	for r := range NumRoles {
		st, err := t.alloc.NewStage(r, r.Size(dst), r.Format(), r.Layers())
		if err != nil {
			set.release()
			return nil, fmt.Errorf("allocating %s stage %s: %w", r, r.Size(dst), err)
		}
		set.stages[r] = st
	}
	if t.set != nil {
		t.set.release()
	}
	t.set = set
	t.allocations++
	t.log.Debug().Stringer("size", dst).Int("allocations", t.allocations).Msg("stage set allocated")
	return set, nil
}

// Current returns the cached stage set or nil.
func (t *Targets) Current() *StageSet { return t.set }

// Allocations returns how many stage sets have been allocated.
func (t *Targets) Allocations() int { return t.allocations }

// Release frees the cached stage set.
func (t *Targets) Release() {
	if t.set != nil {
		t.set.release()
		t.set = nil
	}
}

package pipeline

import (
	"fmt"

	"github.com/soypat/pixview"
)

// Limits are the device limits the pipeline must respect.
type Limits struct {
	MaxTextureDimension int
}

// Source is an uploaded source image.
type Source interface {
	Size() Size
	Release()
}

// Target is a presentation target acquired from a [Surface] for one frame.
type Target interface {
	Size() Size
}

// Frame is everything a backend needs to execute one frame.
// Stages and Source are nil when no source image is loaded.
type Frame struct {
	Recording
	Stages *StageSet
	Source Source
	Target Target
}

// Backend executes recordings on a device.
type Backend interface {
	Allocator
	Limits() Limits
	// LoadSource uploads a decoded image. Must be called from the render thread.
	LoadSource(img *pixview.SourceImage) (Source, error)
	// Execute runs the frame's commands in order and submits them.
	Execute(f *Frame) error
}

// ResolveStage returns the stage a slot refers to, checking the layer is in range.
func (f *Frame) ResolveStage(s Slot) (Stage, error) {
	if s.Kind != SlotStage {
		return nil, fmt.Errorf("slot kind %d is not a stage", s.Kind)
	} else if f.Stages == nil {
		return nil, fmt.Errorf("%s stage referenced without stage set", s.Role)
	}
	st := f.Stages.Stage(s.Role)
	if st == nil {
		return nil, fmt.Errorf("%s stage missing", s.Role)
	} else if s.Layer < 0 || s.Layer >= st.Layers() {
		return nil, fmt.Errorf("%s stage layer %d out of range", s.Role, s.Layer)
	}
	return st, nil
}

// CheckRegistry verifies a backend registry provides every entry point of
// every program. has reports whether a program entry point was built.
func CheckRegistry(has func(id ProgramID, entry string) bool) error {
	for id := range NumPrograms {
		for _, entry := range Programs[id].Entries {
			if !has(id, entry) {
				return fmt.Errorf("%w: program %s has no entry point %s", pixview.ErrShaderCompile, id, entry)
			}
		}
	}
	return nil
}

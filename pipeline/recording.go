package pipeline

import (
	"fmt"

	"github.com/soypat/pixview"
)

// SlotKind is the kind of resource a [Slot] refers to.
type SlotKind uint8

const (
	SlotNone   SlotKind = iota
	SlotSource          // the uploaded source image.
	SlotKernel          // the kernel weight texture.
	SlotStage           // a stage of the frame's StageSet.
	SlotTarget          // the presentation target.
)

// Slot refers to a resource of a [Frame] by name. Recordings never hold
// backend resources directly, so they stay valid across reallocation.
type Slot struct {
	Kind  SlotKind
	Role  Role
	Layer int
}

var (
	SourceSlot = Slot{Kind: SlotSource}
	KernelSlot = Slot{Kind: SlotKernel}
	TargetSlot = Slot{Kind: SlotTarget}
)

// StageSlot refers to the first layer of the stage of role r.
func StageSlot(r Role) Slot { return Slot{Kind: SlotStage, Role: r} }

// LayerSlot refers to one layer of the stage of role r.
func LayerSlot(r Role, layer int) Slot { return Slot{Kind: SlotStage, Role: r, Layer: layer} }

// Command is one step of a [Recording].
type Command interface {
	command()
}

// WriteParams uploads the parameter record.
type WriteParams struct {
	Uniforms pixview.Uniforms
}

// WriteKernel uploads the kernel weights texture.
type WriteKernel struct {
	Kernel pixview.Kernel
}

// Draw runs a program over its whole output.
type Draw struct {
	Program   ProgramID
	Entry     string
	Output    Slot
	Primary   Slot
	Secondary Slot
	// Clear, when not nil, clears the output to the color before drawing.
	Clear *[4]float32
}

// Clear fills the output with a color.
type Clear struct {
	Output Slot
	Color  [4]float32
}

func (WriteParams) command() {}
func (WriteKernel) command() {}
func (Draw) command()        {}
func (Clear) command()       {}

// Recording is an ordered list of commands. Each command observes the
// results of every command before it.
type Recording struct {
	Commands []Command
}

func (r *Recording) WriteParams(u pixview.Uniforms) {
	r.Commands = append(r.Commands, WriteParams{Uniforms: u})
}

func (r *Recording) WriteKernel(k pixview.Kernel) {
	r.Commands = append(r.Commands, WriteKernel{Kernel: k})
}

func (r *Recording) Draw(d Draw) {
	if d.Entry == "" {
		d.Entry = EntryMain
	}
	r.Commands = append(r.Commands, d)
}

func (r *Recording) Clear(out Slot, color [4]float32) {
	r.Commands = append(r.Commands, Clear{Output: out, Color: color})
}

// Draws returns the draw commands in order.
func (r *Recording) Draws() []Draw {
	var draws []Draw
	for _, c := range r.Commands {
		if d, ok := c.(Draw); ok {
			draws = append(draws, d)
		}
	}
	return draws
}

// Validate checks the draw binds exactly the inputs its program's signature declares.
func (d *Draw) Validate() error {
	if d.Program >= NumPrograms {
		return fmt.Errorf("unknown program %d", d.Program)
	}
	sig := &Programs[d.Program]
	switch {
	case !sig.HasEntry(d.Entry):
		return fmt.Errorf("program %s has no entry point %q", d.Program, d.Entry)
	case (sig.Primary == BindNone) != (d.Primary.Kind == SlotNone):
		return fmt.Errorf("program %s primary input mismatch", d.Program)
	case (sig.Secondary == BindNone) != (d.Secondary.Kind == SlotNone):
		return fmt.Errorf("program %s secondary input mismatch", d.Program)
	case (sig.Output == OutputSurface) != (d.Output.Kind == SlotTarget):
		return fmt.Errorf("program %s output mismatch", d.Program)
	}
	return nil
}

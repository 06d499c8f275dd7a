// Package pipeline orders the passes that turn a source image and a
// [pixview.Params] record into a displayed frame. It owns the intermediate
// render targets, decides when the filter chain must run again and drives
// presentation. Passes are executed by a [Backend].
package pipeline

// ProgramID identifies one shader program of the registry.
type ProgramID uint8

const (
	ProgramInterpolate ProgramID = iota // interpolate
	ProgramKernel                       // kernel
	ProgramMinMax                       // minmax
	ProgramNormalize                    // normalize
	ProgramGammaLUT                     // gammalut
	ProgramGammaApply                   // gamma
	ProgramOutput                       // output
	NumPrograms
)

func (id ProgramID) String() string {
	if id < NumPrograms {
		return Programs[id].Name
	}
	return "program(?)"
}

// Fragment entry points.
const (
	EntryMain  = "fs_main"
	EntryBlock = "fs_block" // min/max of a block of the input.
	EntryHalve = "fs_halve" // min/max of 2×2 accumulator texels.
)

// Format is the texel format variant of a stage.
type Format uint8

const (
	// FormatHDR stages hold 4×32 bit float linear color, unfilterable.
	FormatHDR Format = iota
	// FormatDisplay stages hold 8 bit sRGB encoded color, filterable.
	FormatDisplay
)

func (f Format) String() string {
	switch f {
	case FormatHDR:
		return "hdr"
	case FormatDisplay:
		return "display"
	}
	return "format(?)"
}

// Binding is the kind of texture bound to an input slot of a program.
type Binding uint8

const (
	BindNone    Binding = iota
	BindSource          // uploaded source image, filterable.
	BindHDR             // an HDR stage or the kernel texture.
	BindDisplay         // a display stage.
)

// Output is the kind of attachment a program renders to.
type Output uint8

const (
	OutputHDR Output = iota
	OutputDisplay
	OutputSurface
)

// Signature is the binding signature of a program. Every program reads the
// parameter record in bind group 0, its primary input in group 1 and its
// secondary input, if any, in group 2.
type Signature struct {
	Name      string
	Primary   Binding
	Secondary Binding
	Output    Output
	Entries   []string
}

// Programs is the fixed set of programs every backend must provide.
var Programs = [NumPrograms]Signature{
	ProgramInterpolate: {Name: "interpolate", Primary: BindSource, Output: OutputHDR, Entries: []string{EntryMain}},
	ProgramKernel:      {Name: "kernel", Primary: BindHDR, Secondary: BindHDR, Output: OutputHDR, Entries: []string{EntryMain}},
	ProgramMinMax:      {Name: "minmax", Primary: BindHDR, Output: OutputHDR, Entries: []string{EntryBlock, EntryHalve}},
	ProgramNormalize:   {Name: "normalize", Primary: BindHDR, Secondary: BindHDR, Output: OutputHDR, Entries: []string{EntryMain}},
	ProgramGammaLUT:    {Name: "gammalut", Output: OutputHDR, Entries: []string{EntryMain}},
	ProgramGammaApply:  {Name: "gamma", Primary: BindHDR, Secondary: BindHDR, Output: OutputDisplay, Entries: []string{EntryMain}},
	ProgramOutput:      {Name: "output", Primary: BindDisplay, Output: OutputSurface, Entries: []string{EntryMain}},
}

// OutputFormat returns the stage format a program renders to.
// Surface outputs report FormatDisplay.
func (s *Signature) OutputFormat() Format {
	switch s.Output {
	case OutputHDR:
		return FormatHDR
	case OutputDisplay, OutputSurface:
		return FormatDisplay
	}
	panic("unknown program output")
}

// HasEntry reports whether the program defines the fragment entry point.
func (s *Signature) HasEntry(entry string) bool {
	for _, e := range s.Entries {
		if e == entry {
			return true
		}
	}
	return false
}

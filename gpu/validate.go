package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// CompileProgram translates a program to SPIR-V without a device, reporting
// WGSL errors before any adapter is requested.
func CompileProgram(id pipeline.ProgramID, surfaceSRGB bool) ([]byte, error) {
	code, err := ProgramSource(id, surfaceSRGB)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pixview.ErrShaderCompile, id, err)
	}
	spirv, err := naga.Compile(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pixview.ErrShaderCompile, id, err)
	}
	return spirv, nil
}

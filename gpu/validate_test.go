package gpu

import (
	"strings"
	"testing"

	"github.com/soypat/pixview/pipeline"
)

func TestProgramSource(t *testing.T) {
	for id := range pipeline.NumPrograms {
		code, err := ProgramSource(id, true)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if !strings.Contains(code, "fn vs_main") {
			t.Errorf("%s: prelude missing", id)
		}
		if !strings.Contains(code, "const SURFACE_SRGB: bool = true;") {
			t.Errorf("%s: surface constant missing", id)
		}
		for _, entry := range pipeline.Programs[id].Entries {
			if !strings.Contains(code, "fn "+entry+"(") {
				t.Errorf("%s: entry point %s not defined", id, entry)
			}
		}
	}
}

func TestCompilePrograms(t *testing.T) {
	for id := range pipeline.NumPrograms {
		for _, srgb := range []bool{false, true} {
			spirv, err := CompileProgram(id, srgb)
			if err != nil {
				errStr := err.Error()
				if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
					t.Skipf("naga feature not yet implemented: %v", err)
				}
				t.Fatalf("%s (srgb=%v): %v", id, srgb, err)
			}
			if len(spirv) < 4 {
				t.Fatalf("%s: SPIR-V too short", id)
			}
			magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
			if magic != 0x07230203 {
				t.Errorf("%s: invalid SPIR-V magic: 0x%08X", id, magic)
			}
		}
	}
}

package pixview

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifySurfaceError(t *testing.T) {
	tests := []struct {
		msg       string
		kind      SurfaceErrorKind
		transient bool
	}{
		{"GetCurrentTexture: Timeout", SurfaceTimeout, true},
		{"surface texture Outdated", SurfaceOutdated, true},
		{"status: OutOfMemory", SurfaceOutOfMemory, false},
		{"device lost", SurfaceLost, true},
	}
	for _, tt := range tests {
		serr := ClassifySurfaceError(errors.New(tt.msg))
		if serr.Kind != tt.kind || serr.Transient() != tt.transient {
			t.Errorf("%q: got %v transient=%v", tt.msg, serr.Kind, serr.Transient())
		}
		if IsFatal(serr) == tt.transient {
			t.Errorf("%q: IsFatal = %v", tt.msg, IsFatal(serr))
		}
	}
	if ClassifySurfaceError(nil) != nil {
		t.Error("nil error classified")
	}
}

func TestIsFatal(t *testing.T) {
	for _, err := range []error{
		nil,
		fmt.Errorf("x.png: %w", ErrImageDecode),
		fmt.Errorf("%w: clamped", ErrResourceLimit),
	} {
		if IsFatal(err) {
			t.Errorf("%v reported fatal", err)
		}
	}
	for _, err := range []error{ErrDeviceInit, ErrShaderCompile, errors.New("other")} {
		if !IsFatal(err) {
			t.Errorf("%v not reported fatal", err)
		}
	}
}

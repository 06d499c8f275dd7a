package pixview

import (
	"errors"
	"strings"
)

var (
	// ErrDeviceInit is returned when no usable GPU adapter or device could be acquired.
	ErrDeviceInit = errors.New("device initialization failed")
	// ErrShaderCompile is returned when a program of the pipeline registry fails to build.
	ErrShaderCompile = errors.New("shader compile failed")
	// ErrImageDecode is returned when loaded bytes are not a decodable image.
	// The previously loaded source image stays in use.
	ErrImageDecode = errors.New("image decode failed")
	// ErrResourceLimit is reported when the requested scale would exceed the
	// device's maximum texture dimension. The scale is clamped instead of failing.
	ErrResourceLimit = errors.New("resource limit exceeded")
	// ErrNoSource is returned by render calls made before any source image was loaded.
	ErrNoSource = errors.New("no source image loaded")
)

// SurfaceErrorKind classifies presentation surface failures.
type SurfaceErrorKind uint8

const (
	SurfaceLost        SurfaceErrorKind = iota // surface lost
	SurfaceOutdated                            // surface outdated
	SurfaceTimeout                             // surface timeout
	SurfaceOutOfMemory                         // out of memory
)

func (k SurfaceErrorKind) String() string {
	switch k {
	case SurfaceLost:
		return "surface lost"
	case SurfaceOutdated:
		return "surface outdated"
	case SurfaceTimeout:
		return "surface timeout"
	case SurfaceOutOfMemory:
		return "out of memory"
	}
	return "unknown surface error"
}

// SurfaceError is returned when a frame could not acquire or present its surface.
// Transient errors are handled by reconfiguring the surface and skipping the frame.
type SurfaceError struct {
	Kind SurfaceErrorKind
	Err  error
}

func (e *SurfaceError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *SurfaceError) Unwrap() error { return e.Err }

// Transient reports whether the frame can be retried after reconfiguring the surface.
func (e *SurfaceError) Transient() bool { return e.Kind != SurfaceOutOfMemory }

// ClassifySurfaceError maps a backend error message onto a [SurfaceError].
// Unrecognized messages are treated as a lost surface.
func ClassifySurfaceError(err error) *SurfaceError {
	if err == nil {
		return nil
	}
	var serr *SurfaceError
	if errors.As(err, &serr) {
		return serr
	}
	msg := strings.ToLower(err.Error())
	kind := SurfaceLost
	switch {
	case strings.Contains(msg, "outofmemory"), strings.Contains(msg, "out of memory"):
		kind = SurfaceOutOfMemory
	case strings.Contains(msg, "timeout"):
		kind = SurfaceTimeout
	case strings.Contains(msg, "outdated"):
		kind = SurfaceOutdated
	}
	return &SurfaceError{Kind: kind, Err: err}
}

// IsFatal reports whether an error returned by a frame must abort the render loop.
// Transient surface errors, decode failures and clamped resource limits are recoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var serr *SurfaceError
	if errors.As(err, &serr) {
		return !serr.Transient()
	}
	return !errors.Is(err, ErrImageDecode) && !errors.Is(err, ErrResourceLimit)
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/pixview"
)

// Surface is the presentation surface of a window or an offscreen canvas.
type Surface interface {
	// Configure (re)creates the swap chain for the given size.
	Configure(width, height int) error
	// Acquire returns the target of the next frame.
	Acquire() (Target, error)
	// Present shows the last acquired target.
	Present() error
}

// Overlay draws the settings overlay on top of a composited frame.
type Overlay interface {
	Draw(target Target) error
}

// DriverConfig configures a [Driver].
type DriverConfig struct {
	// Overlay is drawn after the image. May be nil.
	Overlay Overlay
	Loader  pixview.LoaderConfig
}

// Driver owns the presentation surface and runs one frame per call to
// [Driver.Frame]: it applies finished loads, renders the image, draws the
// overlay and presents. All methods must be called from the render thread.
type Driver struct {
	// Params is edited by the overlay and input handling between frames.
	Params pixview.Params
	// Input translates window events into edits of Params.
	Input pixview.Input

	backend Backend
	orch    *Orchestrator
	surface Surface
	overlay Overlay
	loader  *pixview.Loader
	log     zerolog.Logger
	size    Size
}

// NewDriver configures surface at width×height and returns a driver with no image loaded.
func NewDriver(b Backend, surface Surface, width, height int, cfg DriverConfig) (*Driver, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("window size must be positive")
	}
	d := &Driver{
		Params:  pixview.DefaultParams(),
		backend: b,
		orch:    NewOrchestrator(b),
		surface: surface,
		overlay: cfg.Overlay,
		loader:  pixview.NewLoader(cfg.Loader),
		log:     pixview.ComponentLogger("driver"),
	}
	if err := d.Resize(width, height); err != nil {
		return nil, err
	}
	return d, nil
}

// Orchestrator returns the stage orchestrator.
func (d *Driver) Orchestrator() *Orchestrator { return d.orch }

// Loader returns the background file loader.
func (d *Driver) Loader() *pixview.Loader { return d.loader }

// MarkChanged forces the filter chain to run on the next frame.
func (d *Driver) MarkChanged() { d.orch.Invalidate() }

// Controls returns the overlay controls bound to d.Params.
func (d *Driver) Controls() []pixview.Control {
	return d.Params.Controls(d.MarkChanged)
}

// Resize reconfigures the surface. Zero sizes, as reported for minimized
// windows, are ignored. The new configuration is in effect before the next frame.
func (d *Driver) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := d.surface.Configure(width, height); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	d.size = Size{Width: width, Height: height}
	d.Params.WindowSize = ms2.Vec{X: float32(width), Y: float32(height)}
	d.log.Info().Stringer("size", d.size).Msg("surface configured")
	return nil
}

// Open starts loading the image file at path in the background.
func (d *Driver) Open(path string) {
	d.loader.OpenFile(path)
}

// SetSource decodes data and replaces the source image right away.
func (d *Driver) SetSource(name string, data []byte) error {
	return d.apply(pixview.Payload{Name: name, Data: data})
}

// Frame renders and presents one frame. Returned errors are classified by
// [pixview.IsFatal]: transient [pixview.SurfaceError]s skip the frame after
// reconfiguring the surface, decode errors keep the previous image.
func (d *Driver) Frame() error {
	var loadErr error
	if p, ok := d.loader.Poll(); ok {
		loadErr = d.apply(p)
		if pixview.IsFatal(loadErr) {
			return loadErr
		}
	}

	target, err := d.surface.Acquire()
	if err != nil {
		serr := pixview.ClassifySurfaceError(err)
		if !serr.Transient() {
			d.log.Error().Err(serr).Msg("acquiring surface")
			return serr
		}
		d.log.Warn().Err(serr).Msg("skipping frame")
		if err := d.surface.Configure(d.size.Width, d.size.Height); err != nil {
			return fmt.Errorf("reconfigure surface: %w", err)
		}
		return serr
	}

	if d.orch.HasSource() {
		err = d.orch.Render(&d.Params, target)
	} else {
		f := &Frame{Target: target}
		f.Clear(TargetSlot, d.Params.Background)
		err = d.backend.Execute(f)
	}
	if err != nil {
		return err
	}
	if d.overlay != nil {
		if err := d.overlay.Draw(target); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	if err := d.surface.Present(); err != nil {
		return pixview.ClassifySurfaceError(err)
	}
	return loadErr
}

func (d *Driver) apply(p pixview.Payload) error {
	if p.Err != nil {
		d.log.Warn().Err(p.Err).Str("name", p.Name).Msg("reading image")
		return fmt.Errorf("%w: %s: %w", pixview.ErrImageDecode, p.Name, p.Err)
	}
	img, err := pixview.DecodeImage(p.Data)
	if err != nil {
		d.log.Warn().Err(err).Str("name", p.Name).Msg("decoding image")
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	img.Name = p.Name
	return d.orch.SetSource(img)
}

// Release frees every resource owned by the driver except the surface and backend.
func (d *Driver) Release() {
	d.orch.Release()
}

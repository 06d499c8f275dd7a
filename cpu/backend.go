// Package cpu is a reference [pipeline.Backend] executing every program in Go.
// It produces the same results as the gpu package up to float rounding and
// serves headless rendering on machines without a GPU.
package cpu

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
	"golang.org/x/sync/errgroup"
)

// Config configures a [Backend].
type Config struct {
	// MaxTextureDimension emulates the device texture size limit. Defaults to 8192.
	MaxTextureDimension int
	// Workers is the number of rows processed concurrently. Defaults to GOMAXPROCS.
	Workers int
}

// Backend implements [pipeline.Backend] on the CPU.
type Backend struct {
	cfg      Config
	params   pixview.Uniforms
	hasParam bool
	kernel   *texture
	log      zerolog.Logger
}

var _ pipeline.Backend = (*Backend)(nil)

// New returns a CPU backend.
func New(cfg Config) (*Backend, error) {
	if cfg.MaxTextureDimension <= 0 {
		cfg.MaxTextureDimension = 8192
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	err := pipeline.CheckRegistry(func(id pipeline.ProgramID, entry string) bool {
		_, ok := programs[entryKey{id, entry}]
		return ok
	})
	if err != nil {
		return nil, err
	}
	b := &Backend{
		cfg:    cfg,
		kernel: newTexture(pipeline.Size{Width: pixview.KernelSize, Height: pixview.KernelSize}, pipeline.FormatHDR, 1),
		log:    pixview.ComponentLogger("cpu"),
	}
	b.log.Debug().Int("workers", cfg.Workers).Int("maxdim", cfg.MaxTextureDimension).Msg("cpu backend ready")
	return b, nil
}

func (b *Backend) Limits() pipeline.Limits {
	return pipeline.Limits{MaxTextureDimension: b.cfg.MaxTextureDimension}
}

func (b *Backend) NewStage(role pipeline.Role, size pipeline.Size, format pipeline.Format, layers int) (pipeline.Stage, error) {
	if size.Width > b.cfg.MaxTextureDimension || size.Height > b.cfg.MaxTextureDimension {
		return nil, fmt.Errorf("stage %s exceeds maximum texture dimension %d", size, b.cfg.MaxTextureDimension)
	}
	return &Stage{role: role, tex: newTexture(size, format, layers)}, nil
}

func (b *Backend) LoadSource(img *pixview.SourceImage) (pipeline.Source, error) {
	d := img.Dims()
	if err := d.Validate(); err != nil {
		return nil, err
	} else if d.Shape != pixview.ShapeRGBA8888 {
		return nil, errors.New("source image must be rgba8888")
	} else if d.Width > b.cfg.MaxTextureDimension || d.Height > b.cfg.MaxTextureDimension {
		return nil, fmt.Errorf("%w: source %dx%d exceeds maximum texture dimension %d", pixview.ErrResourceLimit, d.Width, d.Height, b.cfg.MaxTextureDimension)
	}
	return uploadSource(img), nil
}

func (b *Backend) Execute(f *pipeline.Frame) error {
	for _, cmd := range f.Commands {
		switch cmd := cmd.(type) {
		case pipeline.WriteParams:
			b.params = cmd.Uniforms
			b.hasParam = true
		case pipeline.WriteKernel:
			for j, row := range cmd.Kernel {
				for i, w := range row {
					b.kernel.store(0, i, j, [4]float32{w, 0, 0, 1})
				}
			}
		case pipeline.Clear:
			out, err := b.writer(f, cmd.Output)
			if err != nil {
				return err
			}
			b.fill(out, cmd.Color)
		case pipeline.Draw:
			if err := b.draw(f, &cmd); err != nil {
				return fmt.Errorf("%s pass: %w", cmd.Program, err)
			}
		default:
			return fmt.Errorf("unsupported command %T", cmd)
		}
	}
	return nil
}

func (b *Backend) draw(f *pipeline.Frame, d *pipeline.Draw) error {
	if err := d.Validate(); err != nil {
		return err
	} else if !b.hasParam {
		return errors.New("parameters not written")
	}
	fn := programs[entryKey{d.Program, d.Entry}]
	out, err := b.writer(f, d.Output)
	if err != nil {
		return err
	}
	inv := invocation{u: &b.params, out: out.size()}
	if inv.primary, err = b.reader(f, d.Primary); err != nil {
		return err
	}
	if inv.secondary, err = b.reader(f, d.Secondary); err != nil {
		return err
	}
	if d.Clear != nil {
		b.fill(out, *d.Clear)
	}
	return b.rows(inv.out.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range inv.out.Width {
				if v, ok := fn(&inv, x, y); ok {
					out.store(x, y, v)
				}
			}
		}
	})
}

func (b *Backend) fill(out writer, color [4]float32) {
	sz := out.size()
	for y := range sz.Height {
		for x := range sz.Width {
			out.store(x, y, color)
		}
	}
}

// rows splits height rows into chunks processed by the worker pool.
func (b *Backend) rows(height int, fn func(y0, y1 int)) error {
	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	chunk := max(1, (height+b.cfg.Workers-1)/b.cfg.Workers)
	for y0 := 0; y0 < height; y0 += chunk {
		y1 := min(y0+chunk, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	return g.Wait()
}

func (b *Backend) reader(f *pipeline.Frame, s pipeline.Slot) (reader, error) {
	switch s.Kind {
	case pipeline.SlotNone:
		return reader{}, nil
	case pipeline.SlotSource:
		src, ok := f.Source.(*source)
		if !ok {
			return reader{}, fmt.Errorf("source %T not uploaded by cpu backend", f.Source)
		}
		return reader{tex: src.tex}, nil
	case pipeline.SlotKernel:
		return reader{tex: b.kernel}, nil
	case pipeline.SlotStage:
		st, err := b.stage(f, s)
		if err != nil {
			return reader{}, err
		}
		return reader{tex: st.tex, layer: s.Layer}, nil
	}
	return reader{}, fmt.Errorf("slot kind %d cannot be sampled", s.Kind)
}

func (b *Backend) writer(f *pipeline.Frame, s pipeline.Slot) (writer, error) {
	switch s.Kind {
	case pipeline.SlotTarget:
		c, ok := f.Target.(*Canvas)
		if !ok {
			return nil, fmt.Errorf("target %T is not a cpu canvas", f.Target)
		}
		return c, nil
	case pipeline.SlotStage:
		st, err := b.stage(f, s)
		if err != nil {
			return nil, err
		}
		return layerWriter{tex: st.tex, layer: s.Layer}, nil
	}
	return nil, fmt.Errorf("slot kind %d cannot be rendered to", s.Kind)
}

func (b *Backend) stage(f *pipeline.Frame, s pipeline.Slot) (*Stage, error) {
	st, err := f.ResolveStage(s)
	if err != nil {
		return nil, err
	}
	cst, ok := st.(*Stage)
	if !ok {
		return nil, fmt.Errorf("stage %T not allocated by cpu backend", st)
	}
	return cst, nil
}

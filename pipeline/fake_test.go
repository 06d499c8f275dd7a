package pipeline

import (
	"errors"

	"github.com/soypat/pixview"
)

// fakeBackend records executed frames without rendering.
type fakeBackend struct {
	maxDim   int
	frames   []*Frame
	released int
	execErr  error
}

type fakeStage struct {
	role     Role
	size     Size
	format   Format
	layers   int
	released *int
}

func (s *fakeStage) Role() Role     { return s.role }
func (s *fakeStage) Size() Size     { return s.size }
func (s *fakeStage) Format() Format { return s.format }
func (s *fakeStage) Layers() int    { return s.layers }
func (s *fakeStage) Release()       { *s.released++ }

type fakeSource struct{ size Size }

func (s *fakeSource) Size() Size { return s.size }
func (s *fakeSource) Release()   {}

type fakeTarget struct{ size Size }

func (t *fakeTarget) Size() Size { return t.size }

func (b *fakeBackend) NewStage(role Role, size Size, format Format, layers int) (Stage, error) {
	if size.Width > b.maxDim || size.Height > b.maxDim {
		return nil, errors.New("too large")
	}
	return &fakeStage{role: role, size: size, format: format, layers: layers, released: &b.released}, nil
}

func (b *fakeBackend) Limits() Limits { return Limits{MaxTextureDimension: b.maxDim} }

func (b *fakeBackend) LoadSource(img *pixview.SourceImage) (Source, error) {
	d := img.Dims()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &fakeSource{size: Size{Width: d.Width, Height: d.Height}}, nil
}

func (b *fakeBackend) Execute(f *Frame) error {
	if b.execErr != nil {
		return b.execErr
	}
	for _, d := range f.Draws() {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	b.frames = append(b.frames, f)
	return nil
}

func (b *fakeBackend) last() *Frame { return b.frames[len(b.frames)-1] }

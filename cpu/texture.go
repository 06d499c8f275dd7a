package cpu

import (
	"image"

	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// texture is an array of RGBA float32 images. Values are what a shader
// observes when loading a texel, so display textures hold decoded linear color.
type texture struct {
	size   pipeline.Size
	format pipeline.Format
	layers [][][4]float32
}

func newTexture(size pipeline.Size, format pipeline.Format, layers int) *texture {
	t := &texture{size: size, format: format, layers: make([][][4]float32, layers)}
	for i := range t.layers {
		t.layers[i] = make([][4]float32, size.Width*size.Height)
	}
	return t
}

// load returns a texel, clamping coordinates to the edge.
func (t *texture) load(layer, x, y int) [4]float32 {
	x = min(max(x, 0), t.size.Width-1)
	y = min(max(y, 0), t.size.Height-1)
	return t.layers[layer][y*t.size.Width+x]
}

func (t *texture) store(layer, x, y int, v [4]float32) {
	switch t.format {
	case pipeline.FormatHDR:
	case pipeline.FormatDisplay:
		v = quantizeDisplay(v)
	}
	t.layers[layer][y*t.size.Width+x] = v
}

// reader is the texture binding of one layer.
type reader struct {
	tex   *texture
	layer int
}

func (r reader) size() pipeline.Size      { return r.tex.size }
func (r reader) load(x, y int) [4]float32 { return r.tex.load(r.layer, x, y) }

// writer is a render attachment.
type writer interface {
	size() pipeline.Size
	store(x, y int, v [4]float32)
}

type layerWriter struct {
	tex   *texture
	layer int
}

func (w layerWriter) size() pipeline.Size          { return w.tex.size }
func (w layerWriter) store(x, y int, v [4]float32) { w.tex.store(w.layer, x, y, v) }

// Stage implements [pipeline.Stage].
type Stage struct {
	role pipeline.Role
	tex  *texture
}

func (s *Stage) Role() pipeline.Role     { return s.role }
func (s *Stage) Size() pipeline.Size     { return s.tex.size }
func (s *Stage) Format() pipeline.Format { return s.tex.format }
func (s *Stage) Layers() int             { return len(s.tex.layers) }
func (s *Stage) Release()                { s.tex.layers = nil }

// At returns the texel a shader would load at x,y of layer.
func (s *Stage) At(layer, x, y int) [4]float32 { return s.tex.load(layer, x, y) }

// Set stores a texel, rounding it as the stage format does.
func (s *Stage) Set(layer, x, y int, v [4]float32) { s.tex.store(layer, x, y, v) }

// Image returns the first layer of a display stage as 8 bit sRGB.
func (s *Stage) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.tex.size.Width, s.tex.size.Height))
	for y := range s.tex.size.Height {
		for x := range s.tex.size.Width {
			v := s.tex.load(0, x, y)
			off := img.PixOffset(x, y)
			img.Pix[off+0] = encodeSRGB(v[0])
			img.Pix[off+1] = encodeSRGB(v[1])
			img.Pix[off+2] = encodeSRGB(v[2])
			img.Pix[off+3] = encodeUnorm(v[3])
		}
	}
	return img
}

// source is an uploaded source image, decoded to linear color.
type source struct {
	tex *texture
}

func (s *source) Size() pipeline.Size { return s.tex.size }
func (s *source) Release()            { s.tex.layers = nil }

func uploadSource(img *pixview.SourceImage) *source {
	d := img.Dims()
	tex := newTexture(pipeline.Size{Width: d.Width, Height: d.Height}, pipeline.FormatDisplay, 1)
	for y := range d.Height {
		row := img.Row(y)
		for x := range d.Width {
			px := row[x*4 : x*4+4]
			tex.layers[0][y*d.Width+x] = [4]float32{
				srgbToLinear[px[0]],
				srgbToLinear[px[1]],
				srgbToLinear[px[2]],
				float32(px[3]) / 255,
			}
		}
	}
	return &source{tex: tex}
}

// Canvas is an in-memory presentation surface. It implements
// [pipeline.Surface] and [pipeline.Target].
type Canvas struct {
	img      *image.RGBA
	Presents int
}

// NewCanvas returns a canvas of width×height.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (c *Canvas) Configure(width, height int) error {
	if c.img == nil || c.img.Rect.Dx() != width || c.img.Rect.Dy() != height {
		c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return nil
}

func (c *Canvas) Acquire() (pipeline.Target, error) { return c, nil }

func (c *Canvas) Present() error {
	c.Presents++
	return nil
}

func (c *Canvas) Size() pipeline.Size {
	return pipeline.Size{Width: c.img.Rect.Dx(), Height: c.img.Rect.Dy()}
}

// Image returns the presented pixels as 8 bit sRGB.
func (c *Canvas) Image() *image.RGBA { return c.img }

func (c *Canvas) size() pipeline.Size { return c.Size() }

func (c *Canvas) store(x, y int, v [4]float32) {
	off := c.img.PixOffset(x, y)
	c.img.Pix[off+0] = encodeSRGB(v[0])
	c.img.Pix[off+1] = encodeSRGB(v[1])
	c.img.Pix[off+2] = encodeSRGB(v[2])
	c.img.Pix[off+3] = encodeUnorm(v[3])
}

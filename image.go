package pixview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Shape is the texel format of an image buffer.
type Shape int

const (
	shapeUndefined Shape = iota // undefined
	// ShapeRGBA8888 is 8 bit non-premultiplied sRGB color with linear alpha.
	ShapeRGBA8888 // rgba8888
)

func (sh Shape) String() string {
	switch sh {
	case ShapeRGBA8888:
		return "rgba8888"
	}
	return "undefined"
}

func (sh Shape) BitsPerPixel() (bits int) {
	switch sh {
	default:
		bits = -1
	case ShapeRGBA8888:
		bits = 32
	}
	return bits
}

// Dims describes the memory layout of an image buffer.
type Dims struct {
	Width  int
	Height int
	// Stride is the distance between rows in bytes.
	Stride int
	Shape  Shape
}

func (d Dims) Validate() error {
	pixbits := d.Shape.BitsPerPixel()
	if d.Height <= 0 || d.Width <= 0 {
		return errors.New("empty image")
	} else if pixbits < 1 {
		return errors.New("bad pixel shape")
	} else if (d.Width*pixbits+7)/8 > d.Stride {
		return errors.New("stride smaller than pixel row size")
	}
	return nil
}

// Size returns the readable section size of raw image in bytes.
func (d Dims) Size() int64 {
	if d.Height == 0 || d.Width == 0 {
		return 0
	}
	return int64(d.Height-1)*int64(d.Stride) + int64(d.SizeRow())
}

func (d Dims) SizeRow() int {
	return (d.Width*d.Shape.BitsPerPixel() + 7) / 8
}

// SourceImage is a decoded bitmap ready for upload. It is never modified once loaded.
type SourceImage struct {
	dims Dims
	pix  []byte
	// Name identifies where the image was loaded from, for logging.
	Name string
}

// NewSourceImage wraps an NRGBA image. The pixel buffer is not copied
// and must not be modified afterwards.
func NewSourceImage(img *image.NRGBA) (*SourceImage, error) {
	b := img.Bounds()
	d := Dims{Width: b.Dx(), Height: b.Dy(), Stride: img.Stride, Shape: ShapeRGBA8888}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	off := img.PixOffset(b.Min.X, b.Min.Y)
	return &SourceImage{dims: d, pix: img.Pix[off : off+int(d.Size())]}, nil
}

// Dims returns the in-memory structure of the image.
func (s *SourceImage) Dims() Dims { return s.dims }

// Buffer returns the raw pixel buffer. Rows are Dims().Stride bytes apart.
func (s *SourceImage) Buffer() []byte { return s.pix }

// Row returns the pixels of row y.
func (s *SourceImage) Row(y int) []byte {
	off := y * s.dims.Stride
	return s.pix[off : off+s.dims.SizeRow()]
}

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP data into a [SourceImage].
// Failures wrap [ErrImageDecode].
func DecodeImage(data []byte) (*SourceImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	src, err := NewSourceImage(nrgba)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageDecode, format, err)
	}
	return src, nil
}

package gpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/pixview/pipeline"
	"honnef.co/go/safeish"
)

// copyRowAlignment is the required alignment of BytesPerRow in texture to buffer copies.
const copyRowAlignment = 256

func texelBytes(format wgpu.TextureFormat) int {
	if format == wgpu.TextureFormatRGBA32Float {
		return 16
	}
	return 4
}

// readLayer copies one layer of t to a mapped staging buffer and returns the
// tightly packed texel rows.
func readLayer(ctx *Context, t *wgpu.Texture, format wgpu.TextureFormat, size pipeline.Size, layer int, dst []byte) error {
	rowSize := size.Width * texelBytes(format)
	if len(dst) < rowSize*size.Height {
		return fmt.Errorf("readback buffer too small: %d < %d", len(dst), rowSize*size.Height)
	}
	stride := (rowSize + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	bufSize := uint64(stride * size.Height)

	staging, err := ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  bufSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  t,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(stride),
				RowsPerImage: uint32(size.Height),
			},
		},
		&wgpu.Extent3D{Width: uint32(size.Width), Height: uint32(size.Height), DepthOrArrayLayers: 1},
	)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	ctx.Queue.Submit(cmd)
	cmd.Release()

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, bufSize, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("map failed: %v", status)
			return
		}
		done <- nil
	})
	ctx.Device.Poll(true, nil)
	if err := <-done; err != nil {
		return err
	}
	mapped := staging.GetMappedRange(0, uint(bufSize))
	for y := range size.Height {
		copy(dst[y*rowSize:(y+1)*rowSize], mapped[y*stride:y*stride+rowSize])
	}
	staging.Unmap()
	return nil
}

// Texels reads back one layer of an HDR stage as RGBA float quadruplets in row major order.
func (s *Stage) Texels(ctx *Context, layer int) ([][4]float32, error) {
	if s.format != pipeline.FormatHDR {
		return nil, fmt.Errorf("stage %s is not hdr", s.role)
	}
	sz := s.Size()
	texels := make([][4]float32, sz.Width*sz.Height)
	err := readLayer(ctx, s.tex.tex, s.tex.format, sz, layer, safeish.SliceCast[[]byte](texels))
	if err != nil {
		return nil, err
	}
	return texels, nil
}

// Image reads back a display stage. Channels hold sRGB encoded values.
func (s *Stage) Image(ctx *Context) (*image.NRGBA, error) {
	if s.format != pipeline.FormatDisplay {
		return nil, fmt.Errorf("stage %s is not a display stage", s.role)
	}
	sz := s.Size()
	img := image.NewNRGBA(image.Rect(0, 0, sz.Width, sz.Height))
	if err := readLayer(ctx, s.tex.tex, s.tex.format, sz, 0, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// Package gpu implements [pipeline.Backend] with WebGPU render pipelines.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/rs/zerolog"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/pipeline"
)

// Config selects the adapter and device.
type Config struct {
	PowerPreference wgpu.PowerPreference
	// Surface, when set, must be presentable by the adapter.
	Surface *wgpu.Surface
	Label   string
}

// Context holds the device every GPU object of the viewer is created on.
// It is passed explicitly to each component and must only be used from the render thread.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	log      zerolog.Logger
}

// NewContext acquires an adapter and device. Failures wrap [pixview.ErrDeviceInit].
func NewContext(instance *wgpu.Instance, cfg Config) (*Context, error) {
	if instance == nil {
		instance = wgpu.CreateInstance(nil)
		if instance == nil {
			return nil, fmt.Errorf("%w: webgpu not available", pixview.ErrDeviceInit)
		}
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:   cfg.PowerPreference,
		CompatibleSurface: cfg.Surface,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: adapter: %w", pixview.ErrDeviceInit, err)
	}
	label := cfg.Label
	if label == "" {
		label = "pixview"
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: label})
	if err != nil {
		adapter.Release()
		return nil, fmt.Errorf("%w: device: %w", pixview.ErrDeviceInit, err)
	}
	ctx := &Context{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
		log:      pixview.ComponentLogger("gpu"),
	}
	ctx.log.Info().Int("maxdim", ctx.Limits().MaxTextureDimension).Msg("device created")
	return ctx, nil
}

// Limits returns the device limits relevant to the pipeline.
func (c *Context) Limits() pipeline.Limits {
	limits := c.Device.GetLimits()
	return pipeline.Limits{MaxTextureDimension: int(limits.Limits.MaxTextureDimension2D)}
}

// Release releases the device and adapter.
func (c *Context) Release() {
	c.Queue.Release()
	c.Device.Release()
	c.Adapter.Release()
}

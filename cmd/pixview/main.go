// Command pixview renders an image through the viewer pipeline headlessly
// and inspects images and shader programs.
package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/rs/zerolog"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/pixview"
	"github.com/soypat/pixview/cpu"
	"github.com/soypat/pixview/gpu"
	"github.com/soypat/pixview/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "pixview",
		Short:        "Multi-stage image viewer pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			pixview.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger())
			return nil
		},
	}
	defaultLevel := os.Getenv("LOG_LEVEL")
	if defaultLevel == "" {
		defaultLevel = "info"
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLevel, "log level (trace, debug, info, warn, error); defaults to $LOG_LEVEL")
	root.AddCommand(newRenderCmd(), newInfoCmd(), newShadersCmd())
	return root
}

type renderFlags struct {
	input, output string
	backend       string
	width, height int
	scale, gamma  float32
	mode          string
	xcorr         bool
	kernel        []float32
	pan           []float32
	background    []float32
}

func (f *renderFlags) register(fs *pflag.FlagSet) {
	def := pixview.DefaultParams()
	flat := def.Kernel.Flat()
	fs.StringVarP(&f.input, "input", "i", "", "source image file")
	fs.StringVarP(&f.output, "output", "o", "out.png", "PNG file the presented frame is written to")
	fs.StringVar(&f.backend, "backend", "cpu", "backend executing the pipeline: cpu or gpu")
	fs.IntVar(&f.width, "width", int(def.WindowSize.X), "window width in pixels")
	fs.IntVar(&f.height, "height", int(def.WindowSize.Y), "window height in pixels")
	fs.Float32Var(&f.scale, "scale", def.Scale, "zoom factor")
	fs.Float32Var(&f.gamma, "gamma", def.Gamma, "tone curve exponent, output = input^(1/gamma)")
	fs.StringVar(&f.mode, "mode", def.Scaling.String(), "scaling mode: nearest or bilinear")
	fs.BoolVar(&f.xcorr, "xcorr", false, "enable cross-correlation and contrast normalization")
	fs.Float32SliceVar(&f.kernel, "kernel", flat[:], "25 row-major cross-correlation weights")
	fs.Float32SliceVar(&f.pan, "pan", []float32{0, 0}, "image offset from the window center in pixels")
	fs.Float32SliceVar(&f.background, "bg", def.Background[:], "linear RGBA background color")
}

func (f *renderFlags) params() (pixview.Params, error) {
	p := pixview.DefaultParams()
	mode, ok := pixview.ParseScalingMode(f.mode)
	if !ok {
		return p, fmt.Errorf("unknown scaling mode %q", f.mode)
	} else if len(f.kernel) != pixview.KernelLen {
		return p, fmt.Errorf("kernel needs %d weights, got %d", pixview.KernelLen, len(f.kernel))
	} else if len(f.pan) != 2 {
		return p, errors.New("pan needs 2 values")
	} else if len(f.background) != 4 {
		return p, errors.New("background needs 4 values")
	}
	p.Scale = f.scale
	p.Gamma = f.gamma
	p.Scaling = mode
	p.CrossCorrelation = f.xcorr
	for j := range pixview.KernelSize {
		copy(p.Kernel[j][:], f.kernel[j*pixview.KernelSize:])
	}
	p.Pan = ms2.Vec{X: f.pan[0], Y: f.pan[1]}
	p.Background = [4]float32(f.background)
	return p, nil
}

func newRenderCmd() *cobra.Command {
	var flags renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame of an image and save it as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.input == "" {
				return errors.New("missing --input")
			}
			params, err := flags.params()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(flags.input)
			if err != nil {
				return err
			}
			r, err := newRenderer(flags.backend, flags.width, flags.height)
			if err != nil {
				return err
			}
			defer r.release()
			if err := r.driver.SetSource(flags.input, data); err != nil {
				return err
			}
			window := r.driver.Params.WindowSize
			r.driver.Params = params
			r.driver.Params.WindowSize = window
			if err := r.driver.Frame(); err != nil {
				return err
			}
			img, err := r.image()
			if err != nil {
				return err
			}
			fp, err := os.Create(flags.output)
			if err != nil {
				return err
			}
			defer fp.Close()
			if err := png.Encode(fp, img); err != nil {
				return err
			}
			stats := r.driver.Orchestrator().Stats()
			pixview.Logger().Info().Str("output", flags.output).Int("recomputes", stats.Recomputes).
				Stringer("dst", r.driver.Orchestrator().Targets().Current().Size()).Msg("frame written")
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

type renderer struct {
	driver  *pipeline.Driver
	image   func() (*image.RGBA, error)
	release func()
}

func newRenderer(backend string, width, height int) (*renderer, error) {
	switch backend {
	case "cpu":
		b, err := cpu.New(cpu.Config{})
		if err != nil {
			return nil, err
		}
		canvas := cpu.NewCanvas(width, height)
		d, err := pipeline.NewDriver(b, canvas, width, height, pipeline.DriverConfig{})
		if err != nil {
			return nil, err
		}
		return &renderer{
			driver:  d,
			image:   func() (*image.RGBA, error) { return canvas.Image(), nil },
			release: d.Release,
		}, nil
	case "gpu":
		ctx, err := gpu.NewContext(nil, gpu.Config{PowerPreference: wgpu.PowerPreferenceHighPerformance})
		if err != nil {
			return nil, err
		}
		off := gpu.NewOffscreen(ctx, wgpu.TextureFormatRGBA8UnormSrgb)
		b, err := gpu.New(ctx, off.Format())
		if err != nil {
			ctx.Release()
			return nil, err
		}
		d, err := pipeline.NewDriver(b, off, width, height, pipeline.DriverConfig{})
		if err != nil {
			b.Release()
			ctx.Release()
			return nil, err
		}
		return &renderer{
			driver: d,
			image:  off.Image,
			release: func() {
				d.Release()
				off.Release()
				b.Release()
				ctx.Release()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func newInfoCmd() *cobra.Command {
	var withGPU bool
	cmd := &cobra.Command{
		Use:   "info [image...]",
		Short: "Print image dimensions and device limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dims := make([]pixview.Dims, len(args))
			for i, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				img, err := pixview.DecodeImage(data)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				d := img.Dims()
				dims[i] = d
				fmt.Fprintf(out, "%s: %dx%d %s stride=%d\n", name, d.Width, d.Height, d.Shape, d.Stride)
			}
			if !withGPU {
				return nil
			}
			ctx, err := gpu.NewContext(nil, gpu.Config{})
			if err != nil {
				return err
			}
			defer ctx.Release()
			maxDim := ctx.Limits().MaxTextureDimension
			fmt.Fprintf(out, "max texture dimension: %d\n", maxDim)
			for i, d := range dims {
				fmt.Fprintf(out, "%s: max scale %.3f\n", args[i], pixview.MaxScale(d.Width, d.Height, maxDim))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withGPU, "gpu", false, "query the GPU device limits")
	return cmd
}

func newShadersCmd() *cobra.Command {
	var surfaceSRGB, dump bool
	cmd := &cobra.Command{
		Use:   "shaders",
		Short: "Compile every shader program to SPIR-V without a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed []string
			for id := range pipeline.NumPrograms {
				if dump {
					code, err := gpu.ProgramSource(id, surfaceSRGB)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "// %s\n%s\n", id, code)
					continue
				}
				spirv, err := gpu.CompileProgram(id, surfaceSRGB)
				if err != nil {
					fmt.Fprintf(out, "%-12s FAIL %v\n", id, err)
					failed = append(failed, id.String())
					continue
				}
				fmt.Fprintf(out, "%-12s ok   %d bytes\n", id, len(spirv))
			}
			if len(failed) > 0 {
				return fmt.Errorf("%w: %s", pixview.ErrShaderCompile, strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&surfaceSRGB, "srgb", true, "compile for an sRGB presentation surface")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the assembled WGSL instead of compiling")
	return cmd
}

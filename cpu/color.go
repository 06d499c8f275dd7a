package cpu

import (
	"math"

	"golang.org/x/exp/constraints"
)

// srgbToLinear decodes the 256 sRGB code values, as an RGBA8UnormSrgb texture sampler does.
var srgbToLinear = func() (lut [256]float32) {
	for i := range lut {
		c := float64(i) / 255
		if c <= 0.04045 {
			lut[i] = float32(c / 12.92)
		} else {
			lut[i] = float32(math.Pow((c+0.055)/1.055, 2.4))
		}
	}
	return lut
}()

// encodeSRGB returns the 8 bit sRGB code of linear intensity l.
func encodeSRGB(l float32) uint8 {
	v := float64(clamp(l, 0, 1))
	if v <= 0.0031308 {
		v *= 12.92
	} else {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return uint8(math.Round(v * 255))
}

// encodeUnorm returns the 8 bit code of v in [0,1].
func encodeUnorm(v float32) uint8 {
	return uint8(math.Round(float64(clamp(v, 0, 1)) * 255))
}

// quantizeDisplay rounds linear color through RGBA8UnormSrgb storage.
func quantizeDisplay(v [4]float32) [4]float32 {
	return [4]float32{
		srgbToLinear[encodeSRGB(v[0])],
		srgbToLinear[encodeSRGB(v[1])],
		srgbToLinear[encodeSRGB(v[2])],
		float32(encodeUnorm(v[3])) / 255,
	}
}

func clamp[T constraints.Float](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

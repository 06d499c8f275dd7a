package pixview

import (
	"encoding/binary"
	"math"
	"structs"
)

// UniformsSize is the size in bytes of the marshalled [Uniforms] record.
const UniformsSize = 176

// Uniforms is the parameter record shared by every shader program.
// Its layout must be kept in sync with the Params struct in prelude.wgsl:
//
//	offset size field
//	     0    8 window_size       vec2<f32>
//	     8    8 pan               vec2<f32>
//	    16    4 scale             f32
//	    20    4 gamma             f32
//	    24    4 scaling_mode      u32
//	    28    4 cross_correlation u32
//	    32   16 background        vec4<f32>
//	    48    8 src_size          vec2<f32>
//	    56    8 dst_size          vec2<f32>
//	    64  112 kernel            array<vec4<f32>, 7>
//
// The 25 kernel weights are packed row-major into 7 vec4s, the last 3 floats are padding.
type Uniforms struct {
	_                structs.HostLayout
	WindowSize       [2]float32
	Pan              [2]float32
	Scale            float32
	Gamma            float32
	ScalingMode      uint32
	CrossCorrelation uint32
	Background       [4]float32
	SourceSize       [2]float32
	TargetSize       [2]float32
	Kernel           [KernelLen + 3]float32
}

// AppendBytes appends the little-endian shader representation of u to dst.
func (u *Uniforms) AppendBytes(dst []byte) []byte {
	f32 := func(vs ...float32) {
		for _, v := range vs {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	f32(u.WindowSize[:]...)
	f32(u.Pan[:]...)
	f32(u.Scale, u.Gamma)
	dst = binary.LittleEndian.AppendUint32(dst, u.ScalingMode)
	dst = binary.LittleEndian.AppendUint32(dst, u.CrossCorrelation)
	f32(u.Background[:]...)
	f32(u.SourceSize[:]...)
	f32(u.TargetSize[:]...)
	f32(u.Kernel[:]...)
	return dst
}

// Weight returns the kernel weight at row j and column i.
func (u *Uniforms) Weight(i, j int) float32 {
	return u.Kernel[j*KernelSize+i]
}

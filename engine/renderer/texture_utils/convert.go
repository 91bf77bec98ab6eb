package texture_utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
)

// ConvertFormat rewrites img into the destination format. Supported conversions are RGBA8 and BGRA8 in either
// direction, RGBA8 to R8, RGBA8 to RGBA16Float and RGBA32Float, and sRGB to linear (or back) for 8-bit RGBA.
// Converting to the source format returns img unchanged.
//
// Parameters:
//   - img: the source pixels
//   - dst: the destination format
//
// Returns:
//   - common.TextureStagingData: the converted pixels
//   - error: an error if the conversion is not supported
func ConvertFormat(img common.TextureStagingData, dst gputypes.TextureFormat) (common.TextureStagingData, error) {
	if img.Format == dst {
		return img, nil
	}
	texels := int(img.Width) * int(img.Height)
	if want := texels * BytesPerPixel(img.Format); want == 0 || len(img.Pixels) < want {
		return common.TextureStagingData{}, fmt.Errorf("convert %s: source holds %d bytes, want %d", img.Format, len(img.Pixels), want)
	}

	out := common.TextureStagingData{Width: img.Width, Height: img.Height, Format: dst}
	src := img.Format
	switch {
	case isRGBA8(src) && isBGRA8(dst), isBGRA8(src) && isRGBA8(dst):
		out.Pixels = swizzleRB(img.Pixels[:texels*4])
		if srgb8(src) != srgb8(dst) {
			out.Pixels = recodeSrgb(out.Pixels, srgb8(src))
		}
	case isRGBA8(src) && isRGBA8(dst), isBGRA8(src) && isBGRA8(dst):
		// only the transfer function differs
		out.Pixels = recodeSrgb(append([]byte(nil), img.Pixels[:texels*4]...), srgb8(src))
	case isRGBA8(src) && dst == gputypes.TextureFormatR8Unorm:
		out.Pixels = make([]byte, texels)
		for i := range texels {
			out.Pixels[i] = img.Pixels[i*4]
		}
	case isRGBA8(src) && dst == gputypes.TextureFormatRGBA32Float:
		out.Pixels = make([]byte, texels*16)
		for i := range texels * 4 {
			binary.LittleEndian.PutUint32(out.Pixels[i*4:], math.Float32bits(unorm8(img.Pixels[i], src, i)))
		}
	case isRGBA8(src) && dst == gputypes.TextureFormatRGBA16Float:
		out.Pixels = make([]byte, texels*8)
		for i := range texels * 4 {
			binary.LittleEndian.PutUint16(out.Pixels[i*2:], Float32ToHalf(unorm8(img.Pixels[i], src, i)))
		}
	default:
		return common.TextureStagingData{}, fmt.Errorf("unsupported texture format conversion %s -> %s", src, dst)
	}
	return out, nil
}

func isRGBA8(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8Unorm || f == gputypes.TextureFormatRGBA8UnormSrgb
}

func isBGRA8(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatBGRA8UnormSrgb
}

func srgb8(f gputypes.TextureFormat) bool {
	return f.IsSrgb()
}

func swizzleRB(px []byte) []byte {
	out := make([]byte, len(px))
	for i := 0; i+3 < len(px); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = px[i+2], px[i+1], px[i], px[i+3]
	}
	return out
}

// recodeSrgb converts the color channels in place between encodings, alpha is untouched.
func recodeSrgb(px []byte, fromSrgb bool) []byte {
	for i := range px {
		if i%4 == 3 {
			continue
		}
		v := float32(px[i]) / 255
		if fromSrgb {
			v = SrgbToLinear(v)
		} else {
			v = LinearToSrgb(v)
		}
		px[i] = byte(math.Round(float64(v) * 255))
	}
	return px
}

// unorm8 decodes channel i of an 8-bit RGBA texel stream to a linear float.
func unorm8(b byte, format gputypes.TextureFormat, i int) float32 {
	v := float32(b) / 255
	if format.IsSrgb() && i%4 != 3 {
		return SrgbToLinear(v)
	}
	return v
}

// SrgbToLinear applies the sRGB electro-optical transfer function to a value in [0, 1].
func SrgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow((float64(v)+0.055)/1.055, 2.4))
}

// LinearToSrgb is the inverse of SrgbToLinear.
func LinearToSrgb(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1/2.4) - 0.055)
}

// Float32ToHalf converts f to IEEE 754 binary16 with round-to-nearest-even. Values out of range saturate to infinity.
//
// Parameters:
//   - f: the value to convert
//
// Returns:
//   - uint16: the half-precision bit pattern
func Float32ToHalf(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xff) - 127 + 15
	mant := b & 0x7fffff

	switch {
	case b&0x7fffffff == 0:
		return sign
	case b>>23&0xff == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if rem := mant & (1<<shift - 1); rem > 1<<(shift-1) || (rem == 1<<(shift-1) && half&1 == 1) {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if rem := mant & 0x1fff; rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return half
}

// HalfToFloat32 converts an IEEE 754 binary16 bit pattern to float32.
func HalfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal, renormalise
		e := int32(-14)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | uint32(e+127)<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp-15+127)<<23 | mant<<13)
}

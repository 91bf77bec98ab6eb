package texture_utils

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"golang.org/x/image/draw"
)

// GenerateMipmaps builds the mip chain below level 0 on the CPU. The returned slice holds levels 1..n-1 in order.
// 8-bit four channel formats are scaled with bilinear filtering; single and dual channel 8-bit formats and 32-bit
// float formats use a 2x2 box filter.
//
// Parameters:
//   - img: level 0
//
// Returns:
//   - []common.TextureStagingData: the lower levels, empty for a 1x1 image
//   - error: an error if the format has no CPU mip path or the pixel data is short
func GenerateMipmaps(img common.TextureStagingData) ([]common.TextureStagingData, error) {
	bpp := BytesPerPixel(img.Format)
	if bpp == 0 || img.Format.IsDepthStencil() {
		return nil, fmt.Errorf("no CPU mipmap path for format %s", img.Format)
	}
	if want := int(img.Width) * int(img.Height) * bpp; len(img.Pixels) < want {
		return nil, fmt.Errorf("mipmap source holds %d bytes, want %d", len(img.Pixels), want)
	}

	levels := MipLevelCount(img.Width, img.Height)
	out := make([]common.TextureStagingData, 0, levels-1)
	prev := img
	for level := uint32(1); level < levels; level++ {
		w, h := MipSize(img.Width, img.Height, level)
		var next common.TextureStagingData
		var err error
		switch {
		case bpp == 4 && Channels(img.Format) == 4 && !IsFloat32(img.Format):
			next = scaleRGBA8(prev, w, h)
		case IsFloat32(img.Format):
			next = boxFloat32(prev, w, h, Channels(img.Format))
		case bpp == Channels(img.Format):
			next = boxUint8(prev, w, h, bpp)
		default:
			err = fmt.Errorf("no CPU mipmap path for format %s", img.Format)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		prev = next
	}
	return out, nil
}

func scaleRGBA8(src common.TextureStagingData, w, h uint32) common.TextureStagingData {
	s := &image.RGBA{
		Pix:    src.Pixels,
		Stride: int(src.Width) * 4,
		Rect:   image.Rect(0, 0, int(src.Width), int(src.Height)),
	}
	d := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	draw.BiLinear.Scale(d, d.Bounds(), s, s.Bounds(), draw.Src, nil)
	return common.TextureStagingData{Pixels: d.Pix, Width: w, Height: h, Format: src.Format}
}

// sourceTaps returns the up to two source coordinates that fold into destination coordinate d.
func sourceTaps(d, srcSize uint32) (uint32, uint32) {
	a := min(d*2, srcSize-1)
	b := min(d*2+1, srcSize-1)
	return a, b
}

func boxUint8(src common.TextureStagingData, w, h uint32, channels int) common.TextureStagingData {
	dst := make([]byte, int(w)*int(h)*channels)
	for y := uint32(0); y < h; y++ {
		y0, y1 := sourceTaps(y, src.Height)
		for x := uint32(0); x < w; x++ {
			x0, x1 := sourceTaps(x, src.Width)
			for c := 0; c < channels; c++ {
				at := func(sx, sy uint32) uint32 {
					return uint32(src.Pixels[(int(sy)*int(src.Width)+int(sx))*channels+c])
				}
				sum := at(x0, y0) + at(x1, y0) + at(x0, y1) + at(x1, y1)
				dst[(int(y)*int(w)+int(x))*channels+c] = byte((sum + 2) / 4)
			}
		}
	}
	return common.TextureStagingData{Pixels: dst, Width: w, Height: h, Format: src.Format}
}

func boxFloat32(src common.TextureStagingData, w, h uint32, channels int) common.TextureStagingData {
	dst := make([]byte, int(w)*int(h)*channels*4)
	for y := uint32(0); y < h; y++ {
		y0, y1 := sourceTaps(y, src.Height)
		for x := uint32(0); x < w; x++ {
			x0, x1 := sourceTaps(x, src.Width)
			for c := 0; c < channels; c++ {
				at := func(sx, sy uint32) float32 {
					off := ((int(sy)*int(src.Width)+int(sx))*channels + c) * 4
					return math.Float32frombits(binary.LittleEndian.Uint32(src.Pixels[off:]))
				}
				avg := (at(x0, y0) + at(x1, y0) + at(x0, y1) + at(x1, y1)) / 4
				off := ((int(y)*int(w)+int(x))*channels + c) * 4
				binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(avg))
			}
		}
	}
	return common.TextureStagingData{Pixels: dst, Width: w, Height: h, Format: src.Format}
}

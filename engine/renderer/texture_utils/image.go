package texture_utils

import (
	"image"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// FromImage converts a decoded image into tightly packed RGBA8 staging data. Images that are not already
// non-premultiplied RGBA are redrawn through x/image/draw.
//
// Parameters:
//   - img: the decoded image
//   - srgb: whether the pixels hold sRGB encoded color, selecting RGBA8UnormSrgb over RGBA8Unorm
//
// Returns:
//   - common.TextureStagingData: the staging data
func FromImage(img image.Image, srgb bool) common.TextureStagingData {
	b := img.Bounds()
	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	format := gputypes.TextureFormatRGBA8Unorm
	if srgb {
		format = gputypes.TextureFormatRGBA8UnormSrgb
	}
	return common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: format,
	}
}

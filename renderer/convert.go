package renderer

import (
	"image"

	"github.com/disintegration/imaging"
)

// rgbToNRGBA expands packed RGB24 rows into an opaque NRGBA image
func rgbToNRGBA(rgb []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(rgb) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = rgb[i]
		img.Pix[j+1] = rgb[i+1]
		img.Pix[j+2] = rgb[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// ToNRGBA returns img as a tightly packed width x height NRGBA image,
// resampling when the engine returned a different size.
func ToNRGBA(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
	if n, ok := img.(*image.NRGBA); ok && n.Stride == width*4 && b.Min == (image.Point{}) {
		return n
	}
	// Clone converts any image type and rebases bounds to the origin
	return imaging.Clone(img)
}

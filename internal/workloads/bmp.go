package workloads

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/bmp"
)

// toImage copies row-major pixels into an opaque NRGBA image. Alpha is
// forced to 255 because some kernels use it as a data channel.
func toImage(pixels []RGBA8, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := pixels[y*width+x]
			i := img.PixOffset(x, y)
			img.Pix[i+0] = p.R
			img.Pix[i+1] = p.G
			img.Pix[i+2] = p.B
			img.Pix[i+3] = 255
		}
	}
	return img
}

// writeBMP encodes pixels as a 24-bit bitmap at path.
func writeBMP(path string, pixels []RGBA8, width, height int) error {
	if len(pixels) < width*height {
		return fmt.Errorf("bitmap %dx%d needs %d pixels, have %d", width, height, width*height, len(pixels))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bitmap: %w", err)
	}
	if err := bmp.Encode(f, toImage(pixels, width, height)); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode bitmap: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close bitmap: %w", err)
	}
	return nil
}

func flattenPixels(pixels []RGBA8) []float64 {
	out := make([]float64, 0, len(pixels)*4)
	for _, p := range pixels {
		out = append(out, float64(p.R), float64(p.G), float64(p.B), float64(p.A))
	}
	return out
}

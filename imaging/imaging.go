// Package imaging converts between 8-bit raster images and the [0,1]
// float32 NCHW tensors the optimization loop works on.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	_ "image/gif"

	"golang.org/x/image/draw"

	"github.com/openfluke/dye/nn"
)

// DecodeError reports bytes that could not be decoded as an image
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode reads a PNG/JPEG/GIF image, downscales it so its larger side
// does not exceed maxDim (aspect ratio preserved, never upscaled),
// drops any alpha channel and returns a (1, 3, H, W) tensor with pixel
// values scaled to [0,1].
func Decode(r io.Reader, maxDim int) (*nn.Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &nn.ShapeError{Op: "decode image", Detail: fmt.Sprintf("degenerate source size %dx%d", w, h)}
	}

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w <= 0 || h <= 0 {
			return nil, &nn.ShapeError{Op: "decode image", Detail: fmt.Sprintf("downscale to %d collapses %v to zero size", maxDim, b)}
		}
	}

	return toTensor(resize(img, w, h)), nil
}

// DecodeTo reads an image and resizes it to exactly height x width,
// ignoring its original aspect ratio. Used to force the style image
// onto the content image's resolution.
func DecodeTo(r io.Reader, height, width int) (*nn.Tensor, error) {
	if height <= 0 || width <= 0 {
		return nil, &nn.ShapeError{Op: "decode image", Detail: fmt.Sprintf("invalid target size %dx%d", height, width)}
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	return toTensor(resize(img, width, height)), nil
}

// ToImage converts a (1, 3, H, W) or (3, H, W) tensor back to an 8-bit
// image, clamping values to [0,1]. The inverse of Decode's scaling.
func ToImage(t *nn.Tensor) *image.RGBA {
	shape := t.Shape
	if len(shape) == 4 {
		shape = shape[1:]
	}
	h, w := shape[1], shape[2]
	plane := h * w

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*4
			for c := 0; c < 3; c++ {
				v := t.Data[c*plane+y*w+x]
				if v < 0 {
					v = 0
				} else if v > 1 {
					v = 1
				}
				img.Pix[i+c] = uint8(v*255 + 0.5)
			}
			img.Pix[i+3] = 255
		}
	}
	return img
}

// Encode writes img to w in the named format ("png" or "jpeg")
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("encode image: unsupported format %q", format)
	}
}

// resize draws img into a w x h RGBA buffer with bilinear
// interpolation. A same-size copy just flattens the source into RGBA.
func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}

// toTensor converts an RGBA buffer to a (1, 3, H, W) tensor in [0,1],
// discarding alpha
func toTensor(img *image.RGBA) *nn.Tensor {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	plane := h * w

	t := nn.NewTensor(1, 3, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*4
			for c := 0; c < 3; c++ {
				t.Data[c*plane+y*w+x] = float32(img.Pix[i+c]) / 255
			}
		}
	}
	return t
}

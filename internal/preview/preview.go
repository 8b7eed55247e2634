// Package preview renders the obscured thumbnail shown for a locked artifact.
// Full-resolution bytes stay server side until the artifact is unlocked.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/webp"
)

// ContentType of every rendered preview.
const ContentType = "image/webp"

const (
	DefaultWidth   = 96
	DefaultRadius  = 4
	DefaultQuality = 50
)

// Options tunes the preview.
type Options struct {
	Width   int
	Radius  int
	Quality int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Radius < 0 {
		o.Radius = 0
	} else if o.Radius == 0 {
		o.Radius = DefaultRadius
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("preview: empty image")

// Render decodes data (PNG, JPEG, GIF or WebP), shrinks it to opts.Width,
// blurs it and encodes the result as lossy WebP.
func Render(data []byte, opts Options) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	opts = opts.withDefaults()
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("preview: decode: %w", err)
	}
	img := BoxBlur(Downscale(src, opts.Width), opts.Radius)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("preview: encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale shrinks src to width, keeping the aspect ratio, by averaging the
// source pixels each destination pixel covers. Images already narrower than
// width are copied unchanged.
func Downscale(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	if width <= 0 || width >= sw {
		width = sw
	}
	height := sh * width / sw
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		y0 := b.Min.Y + y*sh/height
		y1 := b.Min.Y + (y+1)*sh/height
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < width; x++ {
			x0 := b.Min.X + x*sw/width
			x1 := b.Min.X + (x+1)*sw/width
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var r, g, bl, a, n uint64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					cr, cg, cb, ca := src.At(sx, sy).RGBA()
					r += uint64(cr)
					g += uint64(cg)
					bl += uint64(cb)
					a += uint64(ca)
					n++
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8((r / n) >> 8),
				G: uint8((g / n) >> 8),
				B: uint8((bl / n) >> 8),
				A: uint8((a / n) >> 8),
			})
		}
	}
	return dst
}

// BoxBlur applies a separable box blur of the given radius.
func BoxBlur(src *image.RGBA, radius int) *image.RGBA {
	if radius <= 0 {
		return src
	}
	tmp := blurPass(src, radius, true)
	return blurPass(tmp, radius, false)
}

func blurPass(src *image.RGBA, radius int, horizontal bool) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]int
			n := 0
			for k := -radius; k <= radius; k++ {
				sx, sy := x, y
				if horizontal {
					sx = x + k
				} else {
					sy = y + k
				}
				if sx < 0 || sy < 0 || sx >= w || sy >= h {
					continue
				}
				i := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
				sum[0] += int(src.Pix[i])
				sum[1] += int(src.Pix[i+1])
				sum[2] += int(src.Pix[i+2])
				sum[3] += int(src.Pix[i+3])
				n++
			}
			o := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := 0; c < 4; c++ {
				dst.Pix[o+c] = uint8(sum[c] / n)
			}
		}
	}
	return dst
}

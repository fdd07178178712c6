package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// lumaImage copies the Y plane of an NV21 frame into a grayscale image
func lumaImage(frame Frame) (*image.Gray, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", frame.Width, frame.Height)
	}
	luma := frame.Luma()
	if len(luma) < frame.Width*frame.Height {
		return nil, fmt.Errorf("short frame: %d bytes for %dx%d", len(luma), frame.Width, frame.Height)
	}

	img := image.NewGray(image.Rect(0, 0, frame.Width, frame.Height))
	copy(img.Pix, luma)
	return img, nil
}

// cardImage cuts the guide region out of a frame and scales it to the
// target card size. A guide taller than it is wide holds a card turned on
// its side, which is rotated upright first.
func cardImage(src *image.Gray, guide image.Rectangle) image.Image {
	guide = guide.Intersect(src.Bounds())
	if guide.Empty() {
		return nil
	}

	var region image.Image = src.SubImage(guide)
	if guide.Dy() > guide.Dx() {
		region = rotate90(src, guide)
	}

	dst := image.NewGray(image.Rect(0, 0, CardImageWidth, CardImageHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), region, region.Bounds(), draw.Src, nil)
	return dst
}

// rotate90 returns r of src rotated a quarter turn clockwise
func rotate90(src *image.Gray, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dy(), r.Dx()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetGray(r.Max.Y-1-y, x-r.Min.X, src.GrayAt(x, y))
		}
	}
	return dst
}

// focusScore is the mean absolute luma gradient inside r. Blurred frames
// score near zero; a sharp card edge or embossed digits push it well
// above MinFocusScore.
func focusScore(src *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(src.Bounds())
	if r.Dx() < 2 || r.Dy() < 2 {
		return 0
	}

	var sum, n int
	for y := r.Min.Y; y < r.Max.Y-1; y++ {
		row := src.Pix[src.PixOffset(r.Min.X, y):]
		next := src.Pix[src.PixOffset(r.Min.X, y+1):]
		for x := 0; x < r.Dx()-1; x++ {
			sum += absDiff(row[x], row[x+1]) + absDiff(row[x], next[x])
			n++
		}
	}
	return float64(sum) / float64(2*n)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// encodePNG encodes an image as PNG
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

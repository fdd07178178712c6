package recording

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/heic"
)

// decodePlane decodes a compressed plane image and returns its green
// channel, one byte per pixel, with the image size
func decodePlane(data []byte) ([]byte, image.Point, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, image.Point{}, err
	}

	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy())

	if gray, ok := img.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := gray.PixOffset(b.Min.X, y)
			out = append(out, gray.Pix[start:start+b.Dx()]...)
		}
		return out, b.Size(), nil
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, g, _, _ := img.At(x, y).RGBA()
			out = append(out, uint8(g>>8))
		}
	}
	return out, b.Size(), nil
}

// decodeImage sniffs the format and decodes. HEIC/HEIF is not supported by
// Go's standard image package so it goes through the pure Go decoder.
func decodeImage(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)

	if mtype.Is("image/heic") || mtype.Is("image/heif") {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF plane: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s plane: %w", mtype.String(), err)
	}
	return img, nil
}

package scanning

import "image"

// Target size of the rectified card image, in the ratio of an ID-1 card
const (
	CardImageWidth  = 428
	CardImageHeight = 270
)

// guideMargin is the fraction of the preview left around the guide
const guideMargin = 0.1

// cardGuide returns the largest card-shaped rectangle centred in a
// width x height preview, leaving guideMargin free on the tighter side.
// In landscape the user turns the device, so the card's long edge runs
// along the preview height.
func cardGuide(orientation Orientation, width, height int) image.Rectangle {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}
	}

	long, short := width, height
	if orientation.IsLandscape() {
		long, short = height, width
	}

	avail := 1 - guideMargin
	cardLong := float64(long) * avail
	cardShort := cardLong * CardImageHeight / CardImageWidth
	if maxShort := float64(short) * avail; cardShort > maxShort {
		cardShort = maxShort
		cardLong = cardShort * CardImageWidth / CardImageHeight
	}

	w, h := int(cardLong), int(cardShort)
	if orientation.IsLandscape() {
		w, h = h, w
	}

	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

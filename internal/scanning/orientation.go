package scanning

// Orientation is the device orientation frames are interpreted in
type Orientation int32

const (
	Portrait           Orientation = 1
	PortraitUpsideDown Orientation = 2
	LandscapeRight     Orientation = 3
	LandscapeLeft      Orientation = 4
)

// degreeDelta is the half-width of the window around each right angle
// that snaps to an orientation
const degreeDelta = 15

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case PortraitUpsideDown:
		return "portrait-upside-down"
	case LandscapeRight:
		return "landscape-right"
	case LandscapeLeft:
		return "landscape-left"
	}
	return "unknown"
}

// Degrees returns the rotation of the orientation
func (o Orientation) Degrees() int {
	switch o {
	case LandscapeLeft:
		return 90
	case PortraitUpsideDown:
		return 180
	case LandscapeRight:
		return 270
	}
	return 0
}

// IsLandscape reports whether the device is held sideways
func (o Orientation) IsLandscape() bool {
	return o == LandscapeLeft || o == LandscapeRight
}

// orientationForDegrees buckets a normalised angle in [0, 360). Angles in
// the dead zones between buckets report false.
func orientationForDegrees(d int) (Orientation, bool) {
	switch {
	case d < degreeDelta || d > 360-degreeDelta:
		return Portrait, true
	case d > 90-degreeDelta && d < 90+degreeDelta:
		return LandscapeLeft, true
	case d > 180-degreeDelta && d < 180+degreeDelta:
		return PortraitUpsideDown, true
	case d > 270-degreeDelta && d < 270+degreeDelta:
		return LandscapeRight, true
	}
	return 0, false
}

// normalizeDegrees maps any angle into [0, 360)
func normalizeDegrees(d int) int {
	d %= 360
	if d < 0 {
		d += 360
	}
	return d
}

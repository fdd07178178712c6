package scanning

import "image"

// Frame is one NV21 preview frame handed to a recognizer
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	Orientation Orientation
	ScanExpiry  bool
}

// Luma returns the Y plane of the frame
func (f Frame) Luma() []byte {
	return f.Data[:min(f.Width*f.Height, len(f.Data))]
}

// Recognizer finds a card in a frame and reads it
type Recognizer interface {
	// ScanFrame analyzes a frame. Frame.Data must not be retained after
	// ScanFrame returns.
	ScanFrame(frame Frame) (DetectionInfo, error)
	// GuideFrame returns where the card should be held in a width x height
	// preview for the given orientation
	GuideFrame(orientation Orientation, width, height int) image.Rectangle
	// Supported reports whether the recognizer can run here
	Supported() bool
	// Close releases the recognizer's resources
	Close() error
}

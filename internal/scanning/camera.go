package scanning

import "errors"

// ErrCameraReleased is returned by camera operations after Release
var ErrCameraReleased = errors.New("camera released")

// FrameFunc receives one preview frame. The buffer belongs to the camera
// again once it has been handed back through AddBuffer.
type FrameFunc func(buf []byte)

// Camera is the preview source a session drives
type Camera interface {
	// SetPreviewSize selects the frame dimensions
	SetPreviewSize(width, height int) error
	// AddBuffer arms a buffer for the next frame. Frames arriving while no
	// buffer is armed are dropped.
	AddBuffer(buf []byte)
	// StartPreview begins delivering frames to onFrame
	StartPreview(onFrame FrameFunc) error
	StopPreview() error
	// AutoFocus starts a focus cycle and calls done when it finishes
	AutoFocus(done func(success bool)) error
	SetTorch(on bool) error
	Torch() bool
	Release() error
}

// CameraOpener connects to a camera. Open may fail transiently while the
// camera is held elsewhere.
type CameraOpener interface {
	Open() (Camera, error)
}

// CameraOpenerFunc adapts a function to CameraOpener
type CameraOpenerFunc func() (Camera, error)

func (f CameraOpenerFunc) Open() (Camera, error) {
	return f()
}

package scanning

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zombor/cardscan/internal/card"
)

var (
	// ErrUnsupportedHardware is returned by Start when the recognizer
	// cannot run on this device
	ErrUnsupportedHardware = errors.New("card scanning not supported on this hardware")
	// ErrCameraUnavailable is returned when no camera could be opened
	// before the connect timeout
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrSessionEnded is returned by control calls after End
	ErrSessionEnded = errors.New("scan session ended")
	// ErrNotStarted is returned by Resume before the session was started
	ErrNotStarted = errors.New("scan session not started")
)

// State is the lifecycle state of a session
type State int

const (
	Idle State = iota
	Previewing
	Detected
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Previewing:
		return "previewing"
	case Detected:
		return "detected"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Listener receives session events. Calls arrive on the frame goroutine.
type Listener interface {
	OnFirstFrame()
	OnEdgeUpdate(info DetectionInfo)
	OnCardDetected(c card.CreditCard, img image.Image)
}

// nopListener stands in when a session is created without a listener
type nopListener struct{}

func (nopListener) OnFirstFrame()                               {}
func (nopListener) OnEdgeUpdate(DetectionInfo)                  {}
func (nopListener) OnCardDetected(card.CreditCard, image.Image) {}

// Config holds the session settings
type Config struct {
	PreviewWidth         int
	PreviewHeight        int
	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration
	MinFocusScore        float64

	// DetectOnly reports a card as soon as all four edges are found,
	// without waiting for a number
	DetectOnly bool
	// ScanExpiry asks the recognizer to read the expiry date too
	ScanExpiry bool
	// RotationalOffset is added to every orientation signal, for
	// displays whose natural orientation is not portrait
	RotationalOffset int

	Clock card.TimeSource
}

// DefaultConfig returns a 640x480 preview, a five second connect timeout
// and the standard focus threshold
func DefaultConfig() Config {
	return Config{
		PreviewWidth:         640,
		PreviewHeight:        480,
		ConnectTimeout:       5 * time.Second,
		ConnectRetryInterval: 50 * time.Millisecond,
		MinFocusScore:        MinFocusScore,
		ScanExpiry:           true,
		Clock:                card.SystemTime{},
	}
}

// Analytics is a snapshot of a session's counters
type Analytics struct {
	FramesScanned       int64   `json:"num_frames_scanned"`
	FramesSkipped       int64   `json:"num_frames_skipped"`
	NullFrames          int64   `json:"num_null_frames"`
	RecognitionFailures int64   `json:"num_recognition_failures"`
	ManualRefocus       int64   `json:"num_manual_refocusings"`
	AutoRefocus         int64   `json:"num_auto_triggered_refocusings"`
	ManualTorchChanges  int64   `json:"num_manual_torch_changes"`
	LastFocusScore      float64 `json:"last_focus_score"`
	ElapsedSeconds      float64 `json:"elapsed_time"`
}

// Session drives a camera and a recognizer until a card is found.
//
// Frames arrive on the camera's goroutine through OnFrame. Only one frame
// is evaluated at a time; frames arriving meanwhile are counted as skipped
// and their buffers handed straight back.
type Session struct {
	cfg        Config
	opener     CameraOpener
	recognizer Recognizer
	listener   Listener

	mu           sync.Mutex
	state        State
	camera       Camera
	generation   uint64
	captureStart time.Time

	processing  atomic.Bool
	firstFrame  atomic.Bool
	focusing    atomic.Bool
	orientation atomic.Int32
	lastFocus   atomic.Uint64

	framesScanned       atomic.Int64
	framesSkipped       atomic.Int64
	nullFrames          atomic.Int64
	recognitionFailures atomic.Int64
	manualRefocus       atomic.Int64
	autoRefocus         atomic.Int64
	manualTorch         atomic.Int64
}

// NewSession creates an idle session. Zero config fields take their
// DefaultConfig values. A nil listener drops every event.
func NewSession(cfg Config, opener CameraOpener, recognizer Recognizer, listener Listener) *Session {
	defaults := DefaultConfig()
	if cfg.PreviewWidth <= 0 || cfg.PreviewHeight <= 0 {
		cfg.PreviewWidth, cfg.PreviewHeight = defaults.PreviewWidth, defaults.PreviewHeight
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ConnectRetryInterval <= 0 {
		cfg.ConnectRetryInterval = defaults.ConnectRetryInterval
	}
	if cfg.MinFocusScore <= 0 {
		cfg.MinFocusScore = defaults.MinFocusScore
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if listener == nil {
		listener = nopListener{}
	}

	s := &Session{
		cfg:        cfg,
		opener:     opener,
		recognizer: recognizer,
		listener:   listener,
	}
	s.orientation.Store(int32(Portrait))
	return s
}

// Start connects to the camera and begins previewing
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case Ended:
		return ErrSessionEnded
	case Previewing:
		return nil
	}

	if !s.recognizer.Supported() {
		return ErrUnsupportedHardware
	}

	s.resetCounters()
	s.orientation.Store(int32(Portrait))
	return s.open(ctx)
}

// Resume reconnects after Pause or a detection. Counters carry over; the
// elapsed clock starts again.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case Ended:
		return ErrSessionEnded
	case Idle:
		return ErrNotStarted
	case Previewing:
		return nil
	}
	return s.open(ctx)
}

func (s *Session) open(ctx context.Context) error {
	cam, err := s.connect(ctx)
	if err != nil {
		return err
	}

	if err := cam.SetPreviewSize(s.cfg.PreviewWidth, s.cfg.PreviewHeight); err != nil {
		cam.Release()
		return fmt.Errorf("setting preview size: %w", err)
	}
	cam.AddBuffer(make([]byte, s.cfg.PreviewWidth*s.cfg.PreviewHeight*3))

	s.mu.Lock()
	if s.state == Ended {
		s.mu.Unlock()
		cam.Release()
		return ErrSessionEnded
	}
	s.camera = cam
	s.state = Previewing
	s.generation++
	s.captureStart = s.cfg.Clock.Now()
	s.mu.Unlock()

	s.firstFrame.Store(true)
	s.focusing.Store(false)

	if err := cam.SetTorch(false); err != nil {
		slog.Warn("Could not turn torch off", "error", err)
	}

	if err := cam.StartPreview(s.OnFrame); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Ended {
			return ErrSessionEnded
		}
		s.releaseLocked()
		s.state = Paused
		return fmt.Errorf("starting preview: %w", err)
	}

	// End may have released the camera while the preview was starting
	s.mu.Lock()
	ended := s.state == Ended
	s.mu.Unlock()
	if ended {
		cam.StopPreview()
		return ErrSessionEnded
	}

	s.autoFocus(cam)

	slog.Info("Scan session previewing",
		"width", s.cfg.PreviewWidth,
		"height", s.cfg.PreviewHeight,
		"detect_only", s.cfg.DetectOnly)
	return nil
}

// connect retries the opener until it succeeds, the timeout passes or ctx
// is done
func (s *Session) connect(ctx context.Context) (Camera, error) {
	start := time.Now()
	var lastErr error

	for {
		cam, err := s.opener.Open()
		if err == nil {
			return cam, nil
		}
		lastErr = err

		if time.Since(start) >= s.cfg.ConnectTimeout {
			break
		}
		slog.Warn("Camera not available, retrying", "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to camera: %w", ctx.Err())
		case <-time.After(s.cfg.ConnectRetryInterval):
		}
	}

	slog.Error("Could not connect to camera", "timeout", s.cfg.ConnectTimeout, "error", lastErr)
	return nil, fmt.Errorf("%w after %s: %w", ErrCameraUnavailable, s.cfg.ConnectTimeout, lastErr)
}

// OnFrame evaluates one preview frame. It is the camera's frame callback.
func (s *Session) OnFrame(buf []byte) {
	if buf == nil {
		s.nullFrames.Add(1)
		slog.Warn("Received empty frame")
		return
	}

	s.mu.Lock()
	cam, state, generation := s.camera, s.state, s.generation
	s.mu.Unlock()

	if cam == nil || state != Previewing {
		return
	}

	if !s.processing.CompareAndSwap(false, true) {
		s.framesSkipped.Add(1)
		cam.AddBuffer(buf)
		return
	}

	if s.firstFrame.CompareAndSwap(true, false) {
		s.listener.OnFirstFrame()
	}

	info, err := s.recognizer.ScanFrame(Frame{
		Data:        buf,
		Width:       s.cfg.PreviewWidth,
		Height:      s.cfg.PreviewHeight,
		Orientation: s.Orientation(),
		ScanExpiry:  s.cfg.ScanExpiry,
	})
	s.framesScanned.Add(1)

	if err != nil {
		s.recognitionFailures.Add(1)
		slog.Warn("Frame recognition failed", "error", err)
		cam.AddBuffer(buf)
		s.processing.Store(false)
		return
	}

	s.lastFocus.Store(math.Float64bits(info.FocusScore))
	s.listener.OnEdgeUpdate(info)

	detected := false
	if info.FocusScore < s.cfg.MinFocusScore {
		if s.autoFocus(cam) {
			s.autoRefocus.Add(1)
		}
	} else if info.Predicted() || (s.cfg.DetectOnly && info.Detected()) {
		detected = true
	}

	cam.AddBuffer(buf)
	s.processing.Store(false)

	if detected {
		s.detect(generation, info)
	}
}

// detect pauses the session and reports the card, unless the session moved
// on while the frame was being evaluated
func (s *Session) detect(generation uint64, info DetectionInfo) {
	s.mu.Lock()
	if s.generation != generation || s.state != Previewing {
		s.mu.Unlock()
		return
	}
	s.releaseLocked()
	s.state = Detected
	s.mu.Unlock()

	result := card.CreditCard{}
	if info.Predicted() {
		result = info.CreditCard()
	}

	slog.Info("Card detected",
		"type", result.Type(),
		"last_four", result.LastFour(),
		"detect_only", s.cfg.DetectOnly)
	s.listener.OnCardDetected(result, info.Image)
}

// OnOrientationSignal takes a device angle in degrees. Negative angles
// mean the device is flat and are ignored, as are angles in the dead
// zones between orientations.
func (s *Session) OnOrientationSignal(degrees int) {
	if degrees < 0 {
		return
	}
	d := normalizeDegrees(degrees + s.cfg.RotationalOffset)
	if o, ok := orientationForDegrees(d); ok {
		s.orientation.Store(int32(o))
	}
}

// Orientation returns the orientation frames are evaluated in
func (s *Session) Orientation() Orientation {
	return Orientation(s.orientation.Load())
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pause turns the torch off and releases the camera
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Previewing, Detected:
		s.releaseLocked()
		s.state = Paused
		slog.Info("Scan session paused")
	}
}

// End releases the camera for good. Calling it again does nothing.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Ended {
		return
	}
	s.releaseLocked()
	s.state = Ended
	slog.Info("Scan session ended", "frames_scanned", s.framesScanned.Load())
}

func (s *Session) releaseLocked() {
	s.generation++
	if s.camera == nil {
		return
	}
	cam := s.camera
	s.camera = nil

	if err := cam.SetTorch(false); err != nil {
		slog.Warn("Could not turn torch off", "error", err)
	}
	if err := cam.StopPreview(); err != nil {
		slog.Warn("Could not stop preview", "error", err)
	}
	if err := cam.Release(); err != nil {
		slog.Warn("Could not release camera", "error", err)
	}
}

// ToggleTorch flips the torch. It reports false when there is no camera or
// the camera refused.
func (s *Session) ToggleTorch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera == nil {
		return false
	}
	if err := s.camera.SetTorch(!s.camera.Torch()); err != nil {
		slog.Warn("Could not set torch", "error", err)
		return false
	}
	s.manualTorch.Add(1)
	return true
}

// Torch reports whether the torch is on
func (s *Session) Torch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera != nil && s.camera.Torch()
}

// Refocus starts a user-requested autofocus. It reports false when there
// is no camera or a focus cycle is already running.
func (s *Session) Refocus() bool {
	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()

	if cam == nil || !s.autoFocus(cam) {
		return false
	}
	s.manualRefocus.Add(1)
	return true
}

// autoFocus starts a focus cycle unless one is in flight
func (s *Session) autoFocus(cam Camera) bool {
	if !s.focusing.CompareAndSwap(false, true) {
		return false
	}
	err := cam.AutoFocus(func(bool) {
		s.focusing.Store(false)
	})
	if err != nil {
		s.focusing.Store(false)
		slog.Warn("Could not trigger auto focus", "error", err)
		return false
	}
	return true
}

// GuideFrame returns where the card should be held in the preview
func (s *Session) GuideFrame() image.Rectangle {
	return s.recognizer.GuideFrame(s.Orientation(), s.cfg.PreviewWidth, s.cfg.PreviewHeight)
}

// DetectOnly reports whether the session stops at edge detection
func (s *Session) DetectOnly() bool {
	return s.cfg.DetectOnly
}

// Analytics returns the counters and the time since the preview started
func (s *Session) Analytics() Analytics {
	s.mu.Lock()
	start := s.captureStart
	s.mu.Unlock()

	var elapsed float64
	if !start.IsZero() {
		elapsed = s.cfg.Clock.Now().Sub(start).Seconds()
	}

	return Analytics{
		FramesScanned:       s.framesScanned.Load(),
		FramesSkipped:       s.framesSkipped.Load(),
		NullFrames:          s.nullFrames.Load(),
		RecognitionFailures: s.recognitionFailures.Load(),
		ManualRefocus:       s.manualRefocus.Load(),
		AutoRefocus:         s.autoRefocus.Load(),
		ManualTorchChanges:  s.manualTorch.Load(),
		LastFocusScore:      math.Float64frombits(s.lastFocus.Load()),
		ElapsedSeconds:      elapsed,
	}
}

func (s *Session) resetCounters() {
	for _, c := range []*atomic.Int64{
		&s.framesScanned, &s.framesSkipped, &s.nullFrames, &s.recognitionFailures,
		&s.manualRefocus, &s.autoRefocus, &s.manualTorch,
	} {
		c.Store(0)
	}
	s.lastFocus.Store(0)
}

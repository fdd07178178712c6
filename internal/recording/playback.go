package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/cardscan/internal/scanning"
)

var _ scanning.Camera = (*Playback)(nil)

// FrameInterval is the delay between frames, matching a 30 fps preview
const FrameInterval = time.Second / 30

// Playback is a camera that replays recorded frames. It delivers one frame
// per interval into an armed buffer, drops frames while none is armed,
// and keeps repeating the last frame once the recording runs out.
type Playback struct {
	frames   [][]byte
	width    int
	height   int
	interval time.Duration

	mu        sync.Mutex
	buffers   [][]byte
	next      int
	torch     bool
	released  bool
	cancel    context.CancelFunc
	delivered int
	dropped   int
}

// NewPlayback decodes every frame of rec up front
func NewPlayback(ctx context.Context, rec *Recording) (*Playback, error) {
	size, err := rec.FrameSize()
	if err != nil {
		return nil, err
	}
	frames, err := rec.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("decoding recording %s: %w", rec.Dir, err)
	}
	return newPlayback(frames, size.X, size.Y, FrameInterval), nil
}

func newPlayback(frames [][]byte, width, height int, interval time.Duration) *Playback {
	return &Playback{
		frames:   frames,
		width:    width,
		height:   height,
		interval: interval,
	}
}

// SetInterval changes the frame interval for the next StartPreview
func (p *Playback) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Size returns the recorded frame size
func (p *Playback) Size() (width, height int) {
	return p.width, p.height
}

// SetPreviewSize only accepts the recorded size
func (p *Playback) SetPreviewSize(width, height int) error {
	if width != p.width || height != p.height {
		return fmt.Errorf("recording is %dx%d, not %dx%d", p.width, p.height, width, height)
	}
	return nil
}

func (p *Playback) AddBuffer(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.buffers = append(p.buffers, buf)
}

// StartPreview starts the frame clock. Frames are delivered on a
// goroutine owned by the playback.
func (p *Playback) StartPreview(onFrame scanning.FrameFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return scanning.ErrCameraReleased
	}
	if p.cancel != nil {
		return nil
	}
	if len(p.frames) == 0 {
		return fmt.Errorf("recording has no frames")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx, p.interval, onFrame)
	return nil
}

func (p *Playback) run(ctx context.Context, interval time.Duration, onFrame scanning.FrameFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if buf, ok := p.fill(); ok {
			onFrame(buf)
		}
	}
}

// fill copies the next frame into an armed buffer
func (p *Playback) fill() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.frames[p.next]
	if len(p.buffers) == 0 || len(p.buffers[0]) < len(frame) {
		p.dropped++
		return nil, false
	}

	buf := p.buffers[0]
	p.buffers = p.buffers[1:]
	copy(buf, frame)

	if p.next < len(p.frames)-1 {
		p.next++
	}
	p.delivered++
	return buf[:len(frame)], true
}

// StopPreview stops the frame clock. It does not wait for a frame being
// delivered, so it may be called from inside the frame callback.
func (p *Playback) StopPreview() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}

// AutoFocus completes after one frame interval
func (p *Playback) AutoFocus(done func(success bool)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return scanning.ErrCameraReleased
	}
	time.AfterFunc(p.interval, func() { done(true) })
	return nil
}

func (p *Playback) SetTorch(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return scanning.ErrCameraReleased
	}
	p.torch = on
	return nil
}

func (p *Playback) Torch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.torch
}

// Release stops playback and drops the armed buffers
func (p *Playback) Release() error {
	p.StopPreview()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
	p.buffers = nil
	slog.Debug("Playback released", "delivered", p.delivered, "dropped", p.dropped)
	return nil
}

// Rewind starts the recording over and makes a released playback usable
// again
func (p *Playback) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.released = false
}

// Stats returns how many frames were delivered and how many were dropped
// for want of a buffer
func (p *Playback) Stats() (delivered, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered, p.dropped
}

// Opener returns a CameraOpener that hands out this playback, rewound,
// every time the session connects
func (p *Playback) Opener() scanning.CameraOpener {
	return scanning.CameraOpenerFunc(func() (scanning.Camera, error) {
		p.Rewind()
		return p, nil
	})
}

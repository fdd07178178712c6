package scanning

import (
	"context"
	"fmt"
	"image"
	"time"

	"golang.org/x/time/rate"
)

// MinFocusScore is the focus score below which a frame is too blurry to read
const MinFocusScore = 6

// RemoteOptions tune the recognizers that call out to a vision model
type RemoteOptions struct {
	// Interval is the minimum time between model calls
	Interval time.Duration
	// Timeout bounds a single model call
	Timeout time.Duration
	// MinFocusScore skips the model call for blurrier frames
	MinFocusScore float64
}

// DefaultRemoteOptions returns one call per second with a 30 second timeout
func DefaultRemoteOptions() RemoteOptions {
	return RemoteOptions{
		Interval:      time.Second,
		Timeout:       30 * time.Second,
		MinFocusScore: MinFocusScore,
	}
}

// remote holds what Gemini and Ollama share: local focus scoring, the card
// crop sent to the model and a limit on how often the model is called
type remote struct {
	opts    RemoteOptions
	limiter *rate.Limiter
}

func newRemote(opts RemoteOptions) remote {
	defaults := DefaultRemoteOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MinFocusScore <= 0 {
		opts.MinFocusScore = defaults.MinFocusScore
	}
	return remote{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
	}
}

// prepare scores the frame and crops the card image. It returns the PNG to
// send, or nil when the frame is too blurry to be worth a model call.
func (r remote) prepare(frame Frame) (DetectionInfo, []byte, error) {
	info := NewDetectionInfo()

	gray, err := lumaImage(frame)
	if err != nil {
		return info, nil, err
	}

	guide := cardGuide(frame.Orientation, frame.Width, frame.Height)
	info.FocusScore = focusScore(gray, guide)
	if info.FocusScore < r.opts.MinFocusScore {
		return info, nil, nil
	}

	info.Image = cardImage(gray, guide)
	if info.Image == nil {
		return info, nil, nil
	}

	data, err := encodePNG(info.Image)
	if err != nil {
		return info, nil, err
	}
	return info, data, nil
}

// wait blocks until the model may be called again and returns a context
// bounded by the call timeout
func (r remote) wait() (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	if err := r.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("waiting for rate limit: %w", err)
	}
	return ctx, cancel, nil
}

func (r remote) GuideFrame(orientation Orientation, width, height int) image.Rectangle {
	return cardGuide(orientation, width, height)
}

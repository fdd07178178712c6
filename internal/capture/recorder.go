package capture

import (
	"image"
	"log/slog"

	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/scanning"
)

// ScanSource is the part of a scan session the recorder reads when a
// card is reported
type ScanSource interface {
	Analytics() scanning.Analytics
	DetectOnly() bool
}

// Recorder is a scanning.Listener that saves every detected card
type Recorder struct {
	service *Service
	source  ScanSource
	records chan *Record
}

var _ scanning.Listener = (*Recorder)(nil)

// NewRecorder creates a recorder writing to service
func NewRecorder(service *Service) *Recorder {
	return &Recorder{
		service: service,
		records: make(chan *Record, 1),
	}
}

// Attach sets the session whose analytics are saved with each record.
// It must be called before the session starts.
func (r *Recorder) Attach(source ScanSource) {
	r.source = source
}

// Records delivers each saved record. A record nobody is waiting for
// is dropped.
func (r *Recorder) Records() <-chan *Record {
	return r.records
}

func (r *Recorder) OnFirstFrame() {
	slog.Debug("First frame received")
}

func (r *Recorder) OnEdgeUpdate(info scanning.DetectionInfo) {
	slog.Debug("Edges updated", "visible", info.VisibleEdges(), "focus_score", info.FocusScore)
}

// OnCardDetected saves the card
func (r *Recorder) OnCardDetected(c card.CreditCard, img image.Image) {
	var (
		analytics  scanning.Analytics
		detectOnly bool
	)
	if r.source != nil {
		analytics = r.source.Analytics()
		detectOnly = r.source.DetectOnly()
	}

	record, err := r.service.RecordScan(c, img, analytics, detectOnly)
	if err != nil {
		slog.Error("Failed to record scan", "card", c.String(), "error", err)
		return
	}

	select {
	case r.records <- record:
	default:
	}
}

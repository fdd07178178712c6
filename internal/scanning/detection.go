package scanning

import (
	"image"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/cardscan/internal/card"
)

// DetectionInfo is what a recognizer reports about one frame
type DetectionInfo struct {
	TopEdge    bool    `json:"top_edge"`
	BottomEdge bool    `json:"bottom_edge"`
	LeftEdge   bool    `json:"left_edge"`
	RightEdge  bool    `json:"right_edge"`
	FocusScore float64 `json:"focus_score"`

	// Complete is set when Prediction holds a full card number
	Complete   bool    `json:"complete"`
	Prediction [16]int `json:"prediction"` // unused slots are -1

	ExpiryMonth int `json:"expiry_month,omitempty"`
	ExpiryYear  int `json:"expiry_year,omitempty"`

	// Image is the rectified card image, when the recognizer produced one
	Image image.Image `json:"-"`

	Flipped  bool    `json:"-"`
	YOffset  int     `json:"-"`
	XOffsets [16]int `json:"-"`
}

// NewDetectionInfo returns an empty detection with every prediction slot unused
func NewDetectionInfo() DetectionInfo {
	var d DetectionInfo
	for i := range d.Prediction {
		d.Prediction[i] = -1
	}
	return d
}

// Detected reports whether all four card edges were found
func (d DetectionInfo) Detected() bool {
	return d.TopEdge && d.BottomEdge && d.LeftEdge && d.RightEdge
}

// Predicted reports whether a full number was read
func (d DetectionInfo) Predicted() bool {
	return d.Complete
}

// VisibleEdges counts the edges found
func (d DetectionInfo) VisibleEdges() int {
	n := 0
	for _, e := range []bool{d.TopEdge, d.BottomEdge, d.LeftEdge, d.RightEdge} {
		if e {
			n++
		}
	}
	return n
}

// SameEdgesAs reports whether other found exactly the same edges
func (d DetectionInfo) SameEdgesAs(other DetectionInfo) bool {
	return d.TopEdge == other.TopEdge &&
		d.BottomEdge == other.BottomEdge &&
		d.LeftEdge == other.LeftEdge &&
		d.RightEdge == other.RightEdge
}

// CreditCard builds a card from the prediction. The number stops at the
// first slot that does not hold a digit. Each call gets a fresh scan ID.
func (d DetectionInfo) CreditCard() card.CreditCard {
	var number strings.Builder
	for _, digit := range d.Prediction {
		if digit < 0 || digit > 9 {
			break
		}
		number.WriteByte(byte('0' + digit))
	}

	return card.CreditCard{
		Number:      number.String(),
		ExpiryMonth: d.ExpiryMonth,
		ExpiryYear:  d.ExpiryYear,
		ScanID:      uuid.NewString(),
		Flipped:     d.Flipped,
		YOffset:     d.YOffset,
		XOffsets:    d.XOffsets,
	}
}

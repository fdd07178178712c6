package capture

import (
	"time"

	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/scanning"
)

// Record is one finished scan session. Only the redacted number and the
// last four digits are kept; the full number never reaches the store.
type Record struct {
	ID             string             `json:"id"`
	ScanID         string             `json:"scan_id,omitempty"`
	CardType       card.Type          `json:"card_type"`
	RedactedNumber string             `json:"redacted_number,omitempty"`
	LastFour       string             `json:"last_four,omitempty"`
	ExpiryMonth    int                `json:"expiry_month,omitempty"`
	ExpiryYear     int                `json:"expiry_year,omitempty"`
	DetectOnly     bool               `json:"detect_only"`
	ImageFile      string             `json:"image_file,omitempty"`
	Analytics      scanning.Analytics `json:"analytics"`
	CreatedAt      time.Time          `json:"created_at"`
}

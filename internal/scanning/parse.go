package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/cardscan/internal/card"
)

// cardScanPrompt is the shared prompt used by all LLM providers for reading cards
const cardScanPrompt = `You are looking at a camera frame cropped to the area where a payment card should be held. Report what you see.

1. **Edges**: For each side of the image (top, bottom, left, right), say whether a straight card edge runs along it.

2. **Card Number**: If the card number is fully readable, give all of its digits with no spaces. If any digit is unreadable, use an empty string.

3. **Expiry**: If an expiry date ("VALID THRU", "GOOD THRU", "EXP") is readable, give the month (1-12) and the four-digit year. Otherwise use 0 for both.

Return ONLY valid JSON in this exact format:
{
  "edges": {"top": false, "bottom": false, "left": false, "right": false},
  "number": "",
  "expiry_month": 0,
  "expiry_year": 0
}

Important:
- Never guess digits
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// detectionResponse is the JSON a remote recognizer answers with
type detectionResponse struct {
	Edges struct {
		Top    bool `json:"top"`
		Bottom bool `json:"bottom"`
		Left   bool `json:"left"`
		Right  bool `json:"right"`
	} `json:"edges"`
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

// parseDetectionJSON parses the JSON response from a remote recognizer
func parseDetectionJSON(text string) (*detectionResponse, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var resp detectionResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return &resp, nil
}

// apply copies the response into info. The number only counts as a
// prediction when it is as long as its brand requires and passes Luhn.
func (r *detectionResponse) apply(info *DetectionInfo, scanExpiry bool) {
	info.TopEdge = r.Edges.Top
	info.BottomEdge = r.Edges.Bottom
	info.LeftEdge = r.Edges.Left
	info.RightEdge = r.Edges.Right

	digits := card.DigitsOnly(r.Number)
	if digits != "" && len(digits) <= len(info.Prediction) {
		for i := range info.Prediction {
			info.Prediction[i] = -1
		}
		for i := 0; i < len(digits); i++ {
			info.Prediction[i] = int(digits[i] - '0')
		}
		info.Complete = len(digits) == card.Classify(digits).NumberLength() &&
			card.PassesLuhnChecksum(digits)
	}

	if !scanExpiry {
		return
	}
	month, year := r.ExpiryMonth, r.ExpiryYear
	if year > 0 && year < 100 {
		year += 2000
	}
	if month >= 1 && month <= 12 && year > 0 {
		info.ExpiryMonth = month
		info.ExpiryYear = year
	}
}

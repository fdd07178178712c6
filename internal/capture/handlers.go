package capture

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/entry"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListCaptures returns all capture records
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords()
	if err != nil {
		slog.Error("Error listing captures", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if records == nil {
		records = []*Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetCapture returns a single capture record
func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.service.GetRecord(id)
	if err != nil {
		corsError(w, "Capture not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetCaptureImage returns the card image of a capture
func (s *Server) handleGetCaptureImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := s.service.GetImage(id)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteCapture deletes a capture and its image
func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteRecord(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Capture not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting capture", "id", id, "error", err)
		corsError(w, "Error deleting capture", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type classifyRequest struct {
	Number string `json:"number"`
}

type classifyResponse struct {
	Type         card.Type `json:"type"`
	NumberLength int       `json:"number_length"`
	CVVLength    int       `json:"cvv_length"`
	Formatted    string    `json:"formatted"`
	Luhn         bool      `json:"luhn"`
}

// handleClassify infers the brand of a (possibly partial) card number
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	digits := card.DigitsOnly(req.Number)
	t := card.Classify(digits)
	writeJSON(w, http.StatusOK, classifyResponse{
		Type:         t,
		NumberLength: t.NumberLength(),
		CVVLength:    t.CVVLength(),
		Formatted:    card.FormatForDisplay(digits, t),
		Luhn:         card.PassesLuhnChecksum(digits),
	})
}

type entryRequest struct {
	Current string `json:"current"`
	entry.Edit
	// Number picks the CVV length for the cvv field
	Number string `json:"number,omitempty"`
}

type entryResponse struct {
	Outcome    string `json:"outcome"`
	Text       string `json:"text"`
	Buffer     string `json:"buffer"`
	Value      string `json:"value"`
	Valid      bool   `json:"valid"`
	FullLength bool   `json:"full_length"`
}

// handleEntry runs one edit of a manual-entry field. The client sends the
// field as it shows it now; nothing is kept between requests.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	field := entry.Field(r.PathValue("field"))

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	form := entry.NewForm(entry.FormOptions{
		RequireExpiry:     true,
		RequireCVV:        true,
		RequirePostalCode: true,
		Clock:             s.service.Clock(),
	}, nil)
	if req.Number != "" {
		if _, _, err := form.Set(entry.FieldNumber, req.Number); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	v := form.Validator(field)
	if v == nil {
		jsonError(w, "Unknown field", http.StatusNotFound)
		return
	}

	v.AfterEdit(req.Current)
	buffer, outcome := entry.Apply(v, req.Current, req.Edit)

	writeJSON(w, http.StatusOK, entryResponse{
		Outcome:    outcome.Kind.String(),
		Text:       outcome.Text,
		Buffer:     buffer,
		Value:      v.Value(),
		Valid:      v.IsValid(),
		FullLength: v.HasFullLength(),
	})
}

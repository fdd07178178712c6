package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/scanning"
)

// ErrNoImage is returned by GetImage for a record saved without a card image
var ErrNoImage = errors.New("capture has no image")

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// Service handles capture history operations
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  card.SystemTime{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Clock returns the service's time source
func (s *Service) Clock() TimeSource {
	return s.timeSource
}

// RecordScan stores the card image, when there is one, and saves a
// redacted record of the scan. The image is removed again if the record
// cannot be saved.
func (s *Service) RecordScan(c card.CreditCard, img image.Image, analytics scanning.Analytics, detectOnly bool) (*Record, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	record := &Record{
		ID:             id,
		ScanID:         c.ScanID,
		CardType:       c.Type(),
		RedactedNumber: c.Redacted(),
		LastFour:       c.LastFour(),
		ExpiryMonth:    c.ExpiryMonth,
		ExpiryYear:     c.ExpiryYear,
		DetectOnly:     detectOnly,
		Analytics:      analytics,
		CreatedAt:      now,
	}

	if img != nil {
		name, err := s.storage.SaveImage(id, img)
		if err != nil {
			return nil, fmt.Errorf("saving card image: %w", err)
		}
		record.ImageFile = name
	}

	if err := s.db.SaveRecord(record); err != nil {
		if record.ImageFile != "" {
			s.storage.DeleteImage(record.ImageFile)
		}
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	slog.Info("Recorded scan",
		"id", id,
		"type", record.CardType,
		"last_four", record.LastFour,
		"frames", analytics.FramesScanned)
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// ListRecords returns all records
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record and its image
func (s *Service) DeleteRecord(id string) error {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if record.ImageFile != "" {
		if err := s.storage.DeleteImage(record.ImageFile); err != nil {
			slog.Warn("Failed to delete image", "filename", record.ImageFile, "error", err)
		}
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	return nil
}

// GetImage returns the stored card image of a record and its content type
func (s *Service) GetImage(id string) ([]byte, string, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}
	if record.ImageFile == "" {
		return nil, "", ErrNoImage
	}

	data, err := s.storage.Image(record.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting card image: %w", err)
	}

	return data, mimetype.Detect(data).String(), nil
}

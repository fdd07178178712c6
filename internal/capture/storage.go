package capture

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidImageName is returned for names that would leave the image
// directory
var ErrInvalidImageName = errors.New("invalid image name")

// imageExt is the extension of every stored card image
const imageExt = ".png"

// Storage keeps card images
type Storage interface {
	// SaveImage stores img under id and returns the stored file name
	SaveImage(id string, img image.Image) (string, error)

	// Image returns the encoded bytes of a stored image
	Image(name string) ([]byte, error)

	// DeleteImage removes a stored image
	DeleteImage(name string) error
}

// LocalStorage writes card images as PNG files into one directory
type LocalStorage struct {
	basePath string
	encoder  png.Encoder
}

// NewLocalStorage creates the image directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		encoder:  png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// SaveImage encodes img as <id>.png. The file is written under a temporary
// name and renamed, so a failed encode leaves nothing behind.
func (l *LocalStorage) SaveImage(id string, img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("no image to save")
	}
	name := id + imageExt
	path, err := l.path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.basePath, "."+id+"-*")
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := l.encoder.Encode(w, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding image: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return name, nil
}

// Image reads a stored image
func (l *LocalStorage) Image(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// DeleteImage removes a stored image
func (l *LocalStorage) DeleteImage(name string) error {
	path, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// path maps an image name to its file, accepting only plain .png names
func (l *LocalStorage) path(name string) (string, error) {
	if name == imageExt || filepath.Base(name) != name || !strings.HasSuffix(name, imageExt) ||
		strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidImageName, name)
	}
	return filepath.Join(l.basePath, name), nil
}

// Package recording plays back frame sequences captured from a camera so
// the scanning pipeline can be driven without one.
package recording

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const manifestName = "manifest.json"

// ErrNoManifest is returned for an archive without any manifest.json
var ErrNoManifest = errors.New("no manifest.json in recording")

// Recording is one directory of a recording archive: a manifest and the
// planes it names
type Recording struct {
	Dir     string
	Entries []ManifestEntry
}

// Open reads every recording in the zip archive at name
func Open(name string) ([]*Recording, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer zr.Close()

	return parseArchive(&zr.Reader)
}

// Parse reads every recording in a zip archive held in r
func Parse(r io.ReaderAt, size int64) ([]*Recording, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading recording archive: %w", err)
	}
	return parseArchive(zr)
}

// ParseBytes is Parse for an archive already in memory
func ParseBytes(data []byte) ([]*Recording, error) {
	return Parse(bytes.NewReader(data), int64(len(data)))
}

func parseArchive(zr *zip.Reader) ([]*Recording, error) {
	files := make(map[string][]byte, len(zr.File))
	var manifests []string

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		files[f.Name] = data
		if strings.HasSuffix(f.Name, manifestName) {
			manifests = append(manifests, f.Name)
		}
	}

	if len(manifests) == 0 {
		return nil, ErrNoManifest
	}
	slices.Sort(manifests)

	recordings := make([]*Recording, 0, len(manifests))
	for _, name := range manifests {
		dir := path.Dir(name)
		entries, err := parseManifest(dir, files[name], files)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		recordings = append(recordings, &Recording{Dir: dir, Entries: entries})
	}
	return recordings, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}

// Len returns the number of frames
func (r *Recording) Len() int {
	return len(r.Entries)
}

// FrameSize returns the frame dimensions, taken from the first Y plane
func (r *Recording) FrameSize() (image.Point, error) {
	if len(r.Entries) == 0 {
		return image.Point{}, fmt.Errorf("recording %s has no frames", r.Dir)
	}
	_, size, err := decodePlane(r.Entries[0].y)
	if err != nil {
		return image.Point{}, fmt.Errorf("frame 0: %w", err)
	}
	return size, nil
}

// Frame assembles frame i as NV21: the Y plane followed by interleaved
// Cr and Cb samples
func (r *Recording) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(r.Entries) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, len(r.Entries))
	}
	e := r.Entries[i]

	y, _, err := decodePlane(e.y)
	if err != nil {
		return nil, fmt.Errorf("frame %d Y: %w", i, err)
	}
	cb, _, err := decodePlane(e.cb)
	if err != nil {
		return nil, fmt.Errorf("frame %d Cb: %w", i, err)
	}
	cr, _, err := decodePlane(e.cr)
	if err != nil {
		return nil, fmt.Errorf("frame %d Cr: %w", i, err)
	}

	if len(cb) != len(cr) || len(y) != 4*len(cb) {
		return nil, fmt.Errorf("frame %d: plane sizes Y=%d Cb=%d Cr=%d are not 4:2:0", i, len(y), len(cb), len(cr))
	}

	frame := make([]byte, len(y)+len(cb)+len(cr))
	copy(frame, y)
	for j := range cb {
		frame[len(y)+2*j] = cr[j]
		frame[len(y)+2*j+1] = cb[j]
	}
	return frame, nil
}

// Frames assembles every frame, decoding in parallel
func (r *Recording) Frames(ctx context.Context) ([][]byte, error) {
	frames := make([][]byte, len(r.Entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range r.Entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame, err := r.Frame(i)
			if err != nil {
				return err
			}
			frames[i] = frame
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

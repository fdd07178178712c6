package recording

import (
	"encoding/json"
	"fmt"
	"path"
)

// ManifestEntry describes one recorded frame. The three planes are stored
// as separate compressed images next to the manifest.
type ManifestEntry struct {
	YFilename             string  `json:"y_filename"`
	CbFilename            string  `json:"cb_filename"`
	CrFilename            string  `json:"cr_filename"`
	FallbackFocusScore    float64 `json:"fallback_focus_score"`
	TemporalMotion        int     `json:"temporal_motion"`
	ExposureLimitsReached bool    `json:"-"`
	CurrentOrientation    int     `json:"current_orientation"`
	Timestamp             float64 `json:"timestamp"`
	OverallLuma           int     `json:"overall_luma,omitempty"`
	FocusPosition         int     `json:"focus_position,omitempty"`
	FocusScores           []int   `json:"focus_scores"`

	y, cb, cr []byte
}

// UnmarshalJSON reads exposure_limits_reached as a count, any value above
// zero meaning the limits were hit
func (e *ManifestEntry) UnmarshalJSON(data []byte) error {
	type plain ManifestEntry
	aux := struct {
		*plain
		ExposureLimitsReached int `json:"exposure_limits_reached"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ExposureLimitsReached = aux.ExposureLimitsReached > 0
	return nil
}

// parseManifest decodes a manifest and attaches each entry's planes from
// files, which is keyed by full path inside the archive
func parseManifest(dir string, data []byte, files map[string][]byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		var ok bool
		if e.y, ok = files[path.Join(dir, e.YFilename)]; !ok {
			return nil, fmt.Errorf("frame %d: missing Y plane %q", i, e.YFilename)
		}
		if e.cb, ok = files[path.Join(dir, e.CbFilename)]; !ok {
			return nil, fmt.Errorf("frame %d: missing Cb plane %q", i, e.CbFilename)
		}
		if e.cr, ok = files[path.Join(dir, e.CrFilename)]; !ok {
			return nil, fmt.Errorf("frame %d: missing Cr plane %q", i, e.CrFilename)
		}
	}
	return entries, nil
}

package replogrec

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// FormatVersion is stamped into the header line of recordings produced
// by Writer. Replay accepts any recording whose header major version
// matches. Recordings made before headers existed have no header line
// and are accepted as-is.
const FormatVersion = "1.0.0"

// Header is the optional first line of a recording.
type Header struct {
	Version string `json:"version"`
}

type headerLine struct {
	Replog *Header `json:"replog,omitempty"`
}

// DecodeHeader reports whether the line is a format header. A nil
// header with a nil error means the line is a regular record.
func DecodeHeader(line []byte) (*Header, error) {
	var hl headerLine
	if err := json.Unmarshal(line, &hl); err != nil {
		// Not valid JSON at all; let record decoding report it.
		return nil, nil
	}
	return hl.Replog, nil
}

// EncodeHeader serializes a format header line, without a trailing
// newline.
func (h Header) EncodeHeader() ([]byte, error) {
	b, err := json.Marshal(headerLine{Replog: &h})
	return b, errors.Wrap(err, "cannot serialize header")
}

// CheckVersion verifies that a recording with the given header can be
// replayed by this version of the format.
func (h Header) CheckVersion() error {
	ours := semver.MustParse(FormatVersion)
	theirs, err := semver.StrictNewVersion(h.Version)
	if err != nil {
		return errors.Wrapf(err, "recording format version '%s' is not valid", h.Version)
	}
	if theirs.Major() != ours.Major() {
		return errors.Errorf("recording format version %s is not compatible with %s", theirs, ours)
	}
	return nil
}

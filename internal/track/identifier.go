// Package track defines the value types shared by every layer of the audio
// distribution core: track identifiers, byte ranges and audio quality levels.
package track

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFormat is returned when an identifier string cannot be parsed.
var ErrInvalidFormat = errors.New("invalid track identifier format")

// Identifier names a single track as (album, disc, track).
// Disc and track indices are 1-based; zero is never valid.
type Identifier struct {
	AlbumID uuid.UUID
	DiscID  uint8
	TrackID uint8
}

// NewIdentifier builds an Identifier, rejecting zero indices.
func NewIdentifier(albumID uuid.UUID, discID, trackID uint8) (Identifier, error) {
	if discID == 0 || trackID == 0 {
		return Identifier{}, ErrInvalidFormat
	}
	return Identifier{AlbumID: albumID, DiscID: discID, TrackID: trackID}, nil
}

// ParseIdentifier parses the canonical "{album_id}/{disc_id}/{track_id}" form.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	albumID, err := uuid.Parse(parts[0])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	discID, err := parseIndex(parts[1])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	trackID, err := parseIndex(parts[2])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Identifier{AlbumID: albumID, DiscID: discID, TrackID: trackID}, nil
}

// parseIndex parses a 1-based u8 index. Zero and negative values fail.
func parseIndex(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInvalidFormat
	}
	return uint8(n), nil
}

// String returns the canonical "{album_id}/{disc_id}/{track_id}" form.
func (id Identifier) String() string {
	return fmt.Sprintf("%s/%d/%d", id.AlbumID, id.DiscID, id.TrackID)
}

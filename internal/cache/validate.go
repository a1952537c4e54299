package cache

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// Validate drives a full decode pass over r with verification on. It
// returns true when every frame decodes and the accumulated sample hash
// matches the stream's declared MD5 signature. Streams that carry no
// signature cannot be verified and validate trivially. Decode failures —
// a malformed head or a broken frame — propagate as errors so callers can
// distinguish "corrupt" from "incomplete".
func Validate(r io.Reader) (bool, error) {
	stream, err := flac.New(r)
	if err != nil {
		return false, fmt.Errorf("parse stream: %w", err)
	}

	hash := md5.New()
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("decode frame: %w", err)
		}
		frame.Hash(hash)
	}

	var zero [md5.Size]byte
	if stream.Info.MD5sum == zero {
		// No signature to verify against.
		return true, nil
	}
	return bytes.Equal(hash.Sum(nil), stream.Info.MD5sum[:]), nil
}

// ValidateFile runs Validate over the file at path.
func ValidateFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return Validate(f)
}

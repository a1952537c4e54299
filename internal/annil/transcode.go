package annil

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/ProjectAnni/anni-go/internal/flacutil"
	"github.com/ProjectAnni/anni-go/internal/provider"
	"github.com/ProjectAnni/anni-go/internal/track"
)

const opusFrameMS = 20

// Transcoder describes one decoder→encoder pipeline. The FLAC source
// streams into the process's stdin; the encoded stream comes out of
// stdout.
type Transcoder interface {
	// ContentType is the response media type.
	ContentType() string
	// ContentLength is the response length in bytes; -1 when unknown.
	ContentLength(info provider.AudioInfo) int64
	// Command builds the encoder process, unstarted.
	Command() *exec.Cmd
}

// NewTranscoder picks the pipeline for a quality and codec family.
// Lossless needs no pipeline and returns nil.
func NewTranscoder(quality track.Quality, codec string) (Transcoder, error) {
	if !quality.NeedsTranscode() {
		return nil, nil
	}
	switch codec {
	case "", "aac":
		return aacTranscoder{quality: quality}, nil
	case "opus":
		return opusTranscoder{quality: quality}, nil
	default:
		return nil, fmt.Errorf("unknown transcode codec %q", codec)
	}
}

// aacTranscoder encodes ADTS AAC with ffmpeg. Output length is not
// predictable, so responses stream without Content-Length.
type aacTranscoder struct {
	quality track.Quality
}

func (t aacTranscoder) ContentType() string { return "audio/aac" }

func (t aacTranscoder) ContentLength(provider.AudioInfo) int64 { return -1 }

func (t aacTranscoder) Command() *exec.Cmd {
	bitrate := strconv.Itoa(t.quality.Bitrate()) + "k"
	return exec.Command("ffmpeg",
		"-i", "pipe:0",
		"-map", "0:0",
		"-b:a", bitrate,
		"-f", "adts",
		"-",
	)
}

// opusTranscoder encodes CBR Opus-in-Ogg with opusenc. Hard CBR at a fixed
// frame size makes the output length estimable up front.
type opusTranscoder struct {
	quality track.Quality
}

func (t opusTranscoder) ContentType() string { return "audio/ogg" }

func (t opusTranscoder) ContentLength(info provider.AudioInfo) int64 {
	if info.Duration == 0 {
		return -1
	}
	return int64(flacutil.OpusFileSize(info.Duration, t.quality.Bitrate(), opusFrameMS))
}

func (t opusTranscoder) Command() *exec.Cmd {
	return exec.Command("opusenc",
		"--bitrate", strconv.Itoa(t.quality.Bitrate()),
		"--hard-cbr",
		"--music",
		"--framesize", strconv.Itoa(opusFrameMS),
		"--comp", "0",
		"--discard-comments",
		"--discard-pictures",
		"-",
		"-",
	)
}

package flacutil

// Ogg container constants used by the Opus size estimate. An Opus stream
// produced with hard CBR emits one packet per frame; packets are laced into
// Ogg pages of roughly one second each.
const (
	oggPageHeaderLen  = 28
	opusIDHeaderLen   = 47
	opusTagsHeaderLen = 60
	framesPerPage     = 50
)

// OpusFileSize estimates the byte length of a CBR Opus-in-Ogg stream of the
// given duration (seconds) at bitrateKbps with frameMs-millisecond frames.
// The estimate covers the audio payload, per-frame lacing bytes, page
// headers and the two leading header packets. It intentionally rounds up:
// clients use it as a Content-Length ceiling, not an exact count.
func OpusFileSize(durationSec uint64, bitrateKbps int, frameMs int) uint64 {
	if durationSec == 0 || bitrateKbps <= 0 || frameMs <= 0 {
		return 0
	}
	payload := durationSec * uint64(bitrateKbps) * 125 // kbps -> bytes/s
	frames := durationSec * 1000 / uint64(frameMs)
	lacing := frames
	pages := frames/framesPerPage + 1
	return payload + lacing + pages*oggPageHeaderLen + opusIDHeaderLen + opusTagsHeaderLen
}

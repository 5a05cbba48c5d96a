// Package audio inspects uploaded files before they are sent for analysis.
package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hajimehoshi/go-mp3"
)

// bytesPerFrame is the size of one decoded stereo 16-bit sample frame.
const bytesPerFrame = 4

// ErrUnsupported is returned for formats the prober cannot read.
var ErrUnsupported = errors.New("audio: unsupported format")

// Info is what a header probe reveals about a file.
type Info struct {
	SampleRate int
	Duration   float64
}

// Probe reads the stream headers of data. Only MP3 is understood; other
// types return ErrUnsupported.
func Probe(mimeType string, data []byte) (Info, error) {
	if mimeType != "audio/mpeg" {
		return Info{}, ErrUnsupported
	}
	return probeMP3(data)
}

// probeMP3 recovers from decoder panics on malformed frames.
func probeMP3(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = Info{}, fmt.Errorf("audio: mp3 decode panicked: %v", r)
		}
	}()

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("audio: mp3 decode failed: %w", err)
	}

	rate := decoder.SampleRate()
	if rate <= 0 {
		return Info{}, fmt.Errorf("audio: invalid sample rate %d", rate)
	}
	length := decoder.Length()
	if length <= 0 {
		return Info{}, errors.New("audio: mp3 contains no samples")
	}

	return Info{
		SampleRate: rate,
		Duration:   float64(length) / float64(bytesPerFrame*rate),
	}, nil
}

// Package audio decodes synthesized audio buffers into raw PCM for playback.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrEmptyData is returned when the input buffer is empty.
	ErrEmptyData = errors.New("empty audio data")
	// ErrUnsupportedFormat is returned for formats the decoder cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrDecodeFailed is returned when the buffer cannot be decoded.
	ErrDecodeFailed = errors.New("audio decode failed")
)

// Raw PCM defaults assumed when a backend hands over headerless samples.
const (
	DefaultSampleRate = 22050
	DefaultChannels   = 1
)

// PCM holds decoded 16-bit signed little-endian audio samples.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// DurationMs returns the playback duration of the samples in milliseconds.
func (p *PCM) DurationMs() int64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	bytesPerSecond := p.SampleRate * p.Channels * 2
	return int64(len(p.Data)) * 1000 / int64(bytesPerSecond)
}

// Decode converts an audio buffer in the given format to raw PCM.
// Supported formats: "wav", "mp3", and "pcm" (headerless 16-bit samples,
// assumed to be at the default rate and channel count).
func Decode(data []byte, format string) (*PCM, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	switch format {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	case "pcm":
		return &PCM{
			Data:       data,
			SampleRate: DefaultSampleRate,
			Channels:   DefaultChannels,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// decodeWAV parses a RIFF/WAVE buffer into 16-bit PCM samples.
func decodeWAV(data []byte) (*PCM, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecodeFailed)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecodeFailed)
	}

	return &PCM{
		Data:       pcm16(buf, int(dec.BitDepth)),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// pcm16 serializes a decoded buffer as 16-bit little-endian samples,
// shifting from the source bit depth where it differs.
func pcm16(buf *goaudio.IntBuffer, bitDepth int) []byte {
	shift := bitDepth - 16
	out := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		v := sample
		if shift > 0 {
			v >>= shift
		} else if shift < 0 {
			v <<= -shift
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// decodeMP3 decompresses an MP3 buffer. go-mp3 always emits 16-bit stereo.
func decodeMP3(data []byte) (*PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecodeFailed)
	}

	return &PCM{
		Data:       pcm,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}

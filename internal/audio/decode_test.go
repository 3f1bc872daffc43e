package audio

import (
	"errors"
	"testing"

	goaudio "github.com/go-audio/audio"

	"github.com/dgnsrekt/vocalize-go/internal/wav"
)

func TestDecode_EmptyData(t *testing.T) {
	_, err := Decode(nil, "wav")
	if !errors.Is(err, ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte{0x01}, "ogg")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecode_WAV(t *testing.T) {
	// 100 samples of silence at 22050 Hz mono
	wavData := wav.CreateMinimal(100, 22050, 1, 16)

	pcm, err := Decode(wavData, "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pcm.SampleRate != 22050 {
		t.Errorf("sample rate = %d, want 22050", pcm.SampleRate)
	}
	if pcm.Channels != 1 {
		t.Errorf("channels = %d, want 1", pcm.Channels)
	}
	if len(pcm.Data) != 200 {
		t.Errorf("pcm length = %d, want 200", len(pcm.Data))
	}
}

func TestDecode_WAVStereo(t *testing.T) {
	wavData := wav.CreateMinimal(441, 44100, 2, 16)

	pcm, err := Decode(wavData, "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pcm.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", pcm.SampleRate)
	}
	if pcm.Channels != 2 {
		t.Errorf("channels = %d, want 2", pcm.Channels)
	}
}

func TestDecode_WAVInvalid(t *testing.T) {
	_, err := Decode([]byte("definitely not a wav file"), "wav")
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecode_MP3Invalid(t *testing.T) {
	_, err := Decode([]byte("definitely not an mp3 file"), "mp3")
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestDecode_RawPCM(t *testing.T) {
	data := make([]byte, 441)
	pcm, err := Decode(data, "pcm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pcm.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", pcm.SampleRate, DefaultSampleRate)
	}
	if pcm.Channels != DefaultChannels {
		t.Errorf("channels = %d, want %d", pcm.Channels, DefaultChannels)
	}
	if len(pcm.Data) != len(data) {
		t.Errorf("pcm length = %d, want %d", len(pcm.Data), len(data))
	}
}

func TestPCM_DurationMs(t *testing.T) {
	tests := []struct {
		name       string
		dataLen    int
		sampleRate int
		channels   int
		want       int64
	}{
		{"one second mono", 44100, 22050, 1, 1000},
		{"half second mono", 22050, 22050, 1, 500},
		{"one second stereo", 176400, 44100, 2, 1000},
		{"empty", 0, 22050, 1, 0},
		{"zero rate", 100, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := &PCM{
				Data:       make([]byte, tt.dataLen),
				SampleRate: tt.sampleRate,
				Channels:   tt.channels,
			}
			if got := pcm.DurationMs(); got != tt.want {
				t.Errorf("DurationMs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPCM16BitDepthShift(t *testing.T) {
	// 24-bit samples are shifted down to 16-bit on the way out.
	buf := &goaudio.IntBuffer{Data: []int{0x123456, -0x123456}}
	got := pcm16(buf, 24)

	if len(got) != 4 {
		t.Fatalf("pcm16 length = %d, want 4", len(got))
	}
	if got[0] != 0x34 || got[1] != 0x12 {
		t.Errorf("sample 0 = %#x %#x, want 0x34 0x12", got[0], got[1])
	}

	// 16-bit input passes through unshifted.
	same := pcm16(&goaudio.IntBuffer{Data: []int{0x1234}}, 16)
	if same[0] != 0x34 || same[1] != 0x12 {
		t.Errorf("16-bit sample = %#x %#x, want 0x34 0x12", same[0], same[1])
	}
}

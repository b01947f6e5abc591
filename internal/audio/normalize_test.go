package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestNormalizeRawPCM(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 100)
	params := RawParams{Channels: 2, Rate: 8000, Width: 2}

	wav, err := Normalize(pcm, "audio/x-raw, rate=8000, channels=2", params)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	info, err := GetWAVInfo(wav)
	if err != nil {
		t.Fatalf("GetWAVInfo() error = %v", err)
	}

	if info.Channels != 2 || info.SampleRate != 8000 {
		t.Errorf("framing = %d ch %d Hz, want 2 ch 8000 Hz", info.Channels, info.SampleRate)
	}
}

func TestNormalizeWAVPassthrough(t *testing.T) {
	wav, err := WrapPCM([]byte{0x00, 0x01, 0x02, 0x03}, DefaultRawParams())
	if err != nil {
		t.Fatalf("WrapPCM() error = %v", err)
	}

	out, err := Normalize(wav, "audio/wav", DefaultRawParams())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if !bytes.Equal(out, wav) {
		t.Error("valid WAV input was not passed through unchanged")
	}
}

func TestNormalizeFLACGarbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not flac"), "audio/x-flac", DefaultRawParams())
	if err == nil {
		t.Fatal("expected error for undecodable FLAC payload")
	}

	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	wav, err := Normalize(nil, "audio/x-raw", DefaultRawParams())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if err := ValidateWAV(wav); err != nil {
		t.Errorf("ValidateWAV() error = %v", err)
	}
}

func TestIsFLAC(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"audio/x-flac", true},
		{"audio/x-flac; rate=16000", true},
		{"audio/flac", true},
		{"audio/x-raw, rate=16000", false},
		{"audio/wav", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isFLAC(tt.contentType); got != tt.want {
			t.Errorf("isFLAC(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

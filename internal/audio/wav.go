package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader represents the canonical 44-byte PCM WAV header written in front
// of normalized audio
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// RawParams describes how a headerless PCM payload is framed. Channels and
// Rate are negotiable on the legacy transports; Width is bytes per sample.
type RawParams struct {
	Channels int
	Rate     int
	Width    int
}

// DefaultRawParams returns the framing assumed when a client declares
// nothing: mono 16 kHz 16-bit PCM.
func DefaultRawParams() RawParams {
	return RawParams{Channels: 1, Rate: 16000, Width: 2}
}

// Validate checks that the declared framing can be encoded in a WAV header.
func (p RawParams) Validate() error {
	if p.Channels < 1 {
		return fmt.Errorf("channel count must be at least 1, got %d", p.Channels)
	}

	if p.Rate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.Rate)
	}

	if p.Width < 1 || p.Width > 4 {
		return fmt.Errorf("sample width must be between 1 and 4 bytes, got %d", p.Width)
	}

	return nil
}

// BytesPerSecond returns the raw data rate implied by the framing.
func (p RawParams) BytesPerSecond() int {
	return p.Rate * p.Channels * p.Width
}

// WrapPCM wraps headerless PCM bytes with a WAV header built from the
// declared framing. The payload is not inspected; the header encodes exactly
// what the caller declared.
func WrapPCM(pcm []byte, params RawParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	bitsPerSample := uint16(params.Width * 8)
	numChannels := uint16(params.Channels)
	dataSize := uint32(len(pcm))

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(params.Rate),
		ByteRate:      uint32(params.Rate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ValidateWAV validates a WAV file format without decoding the audio data
func ValidateWAV(data []byte) error {
	if len(data) < 44 {
		return fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	// Check RIFF header
	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	// Check WAVE format
	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	// Check fmt chunk
	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	// Check data chunk
	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return nil
}

// WAVInfo contains basic information about a WAV file
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
}

// GetWAVInfo extracts metadata from a WAV file
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	buf := bytes.NewReader(data)
	var header WAVHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	duration := 0.0
	if header.ByteRate > 0 {
		duration = float64(header.Subchunk2Size) / float64(header.ByteRate)
	}

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      duration,
		DataSize:      header.Subchunk2Size,
	}, nil
}

package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// decodeFLAC decodes a complete FLAC container and re-encodes the samples as
// canonical 16-bit PCM WAV, preserving the stream's channel count and sample
// rate.
func decodeFLAC(data []byte) ([]byte, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing flac stream: %w", err)
	}

	info := stream.Info
	params := RawParams{
		Channels: int(info.NChannels),
		Rate:     int(info.SampleRate),
		Width:    2,
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("flac stream info: %w", err)
	}

	// Samples are rescaled to 16 bits so the canonical form is uniform
	// regardless of the source bit depth.
	shift := int(info.BitsPerSample) - 16

	pcm := bytes.NewBuffer(make([]byte, 0, int(info.NSamples)*params.Channels*2))
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding flac frame: %w", err)
		}

		if len(f.Subframes) == 0 {
			continue
		}

		n := f.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			for _, sub := range f.Subframes {
				if i >= len(sub.Samples) {
					return nil, fmt.Errorf("flac frame is missing samples for channel")
				}

				s := sub.Samples[i]
				switch {
				case shift > 0:
					s >>= uint(shift)
				case shift < 0:
					s <<= uint(-shift)
				}

				pcm.WriteByte(byte(s))
				pcm.WriteByte(byte(s >> 8))
			}
		}
	}

	return WrapPCM(pcm.Bytes(), params)
}

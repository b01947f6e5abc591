package audio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat indicates that a declared compressed container could
// not be decoded. No engine call is made for payloads that fail this way.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Normalize converts an uploaded or streamed audio payload into the canonical
// seekable PCM WAV form consumed by the engine.
//
// Payloads declared as FLAC are fully decoded and re-encoded. Payloads that
// already carry a valid WAV header pass through unchanged. Everything else is
// treated as headerless raw PCM and wrapped with a header built from the
// declared framing. The whole payload stays in memory; request size is
// bounded by the transport, not here.
func Normalize(payload []byte, contentType string, params RawParams) ([]byte, error) {
	if isFLAC(contentType) {
		wav, err := decodeFLAC(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return wav, nil
	}

	if ValidateWAV(payload) == nil {
		return payload, nil
	}

	return WrapPCM(payload, params)
}

func isFLAC(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/x-flac") ||
		strings.HasPrefix(contentType, "audio/flac")
}

package audio

import (
	"bytes"
	"fmt"
)

// Buffer accumulates raw PCM chunks for one capture turn of a streaming
// session. The framing is fixed by the first chunk of the turn; Finalize
// wraps the accumulated bytes as canonical WAV and the buffer is discarded
// afterwards. A Buffer belongs to exactly one connection and is not safe for
// concurrent use.
type Buffer struct {
	params RawParams
	data   bytes.Buffer
}

// NewBuffer opens an accumulation buffer with the given framing.
func NewBuffer(params RawParams) (*Buffer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio framing: %w", err)
	}

	return &Buffer{params: params}, nil
}

// Params returns the framing the buffer was opened with.
func (b *Buffer) Params() RawParams {
	return b.params
}

// Append adds raw PCM bytes to the buffer in arrival order.
func (b *Buffer) Append(p []byte) {
	b.data.Write(p)
}

// Len returns the number of accumulated raw bytes.
func (b *Buffer) Len() int {
	return b.data.Len()
}

// Duration returns the accumulated audio length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.data.Len()) / float64(b.params.BytesPerSecond())
}

// Finalize wraps the accumulated PCM as canonical WAV.
func (b *Buffer) Finalize() ([]byte, error) {
	return WrapPCM(b.data.Bytes(), b.params)
}

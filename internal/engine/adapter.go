package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/siongui/gojianfan"
)

// Adapter guards the one shared engine instance. Concurrent callers acquire a
// worker slot from a semaphore sized at construction; excess requests queue
// until a slot frees up. A slot is held until the returned segment stream is
// fully drained, because the engine keeps producing lazily until then.
type Adapter struct {
	engine  Engine
	sem     chan struct{}
	workers int
	logger  *slog.Logger
}

// NewAdapter wraps the shared engine with a worker pool of the given size.
func NewAdapter(e Engine, workers int, logger *slog.Logger) *Adapter {
	if workers < 1 {
		workers = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		engine:  e,
		sem:     make(chan struct{}, workers),
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured worker pool size.
func (a *Adapter) Workers() int {
	return a.workers
}

// Transcribe submits canonical audio to the shared engine. The returned
// stream yields the engine's segments in order, with traditional Chinese
// rewritten to simplified per segment when the detected or declared language
// is Chinese. The rewrite happens lazily, exactly once per segment, as the
// consumer iterates.
func (a *Adapter) Transcribe(ctx context.Context, audio io.ReadSeeker, opts Options) (*Stream, *Info, error) {
	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	inner, info, err := a.engine.Transcribe(ctx, audio, opts)
	if err != nil {
		<-a.sem
		return nil, nil, err
	}

	a.logger.Info("Detected language",
		slog.String("language", info.Language),
		slog.Float64("probability", info.LanguageProbability),
	)

	simplify := info.Language == "zh"

	out := NewStream(0)
	go func() {
		defer func() { <-a.sem }()

		for {
			seg, ok := inner.Next()
			if !ok {
				out.Close(inner.Err())
				return
			}

			if simplify {
				seg.Text = gojianfan.T2S(seg.Text)
			}

			if err := out.Send(ctx, seg); err != nil {
				// Consumer went away; the engine's remaining output
				// is dropped so the worker slot can be released.
				for {
					if _, ok := inner.Next(); !ok {
						break
					}
				}
				out.Close(err)
				return
			}
		}
	}()

	return out, info, nil
}

package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// ErrSourceClosed is returned by Next once the source has no more frames.
var ErrSourceClosed = errors.New("replay: source closed")

// DefaultRetryInterval is how long OpenWithRetry waits between attempts.
const DefaultRetryInterval = time.Second

// Source yields frames in order.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// JSONLSource decodes one JSON frame per line.
type JSONLSource struct {
	dec    *json.Decoder
	closer io.Closer
	frames int
}

// NewJSONLSource reads frames from r. If r is an io.Closer it is closed by Close.
func NewJSONLSource(r io.Reader) *JSONLSource {
	s := &JSONLSource{dec: json.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenJSONL opens a frame dump on disk.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay dump: %w", err)
	}
	return NewJSONLSource(f), nil
}

// Next decodes the next frame. It returns ErrSourceClosed at end of input.
func (s *JSONLSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f Frame
	if err := s.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSourceClosed
		}
		return nil, fmt.Errorf("decode frame %d: %w", s.frames+1, err)
	}
	s.frames++
	return &f, nil
}

// Close releases the underlying reader.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenWithRetry calls open until it succeeds or ctx is cancelled, waiting
// interval between attempts (DefaultRetryInterval when interval <= 0).
func OpenWithRetry(ctx context.Context, open func() (Source, error), interval time.Duration) (Source, error) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	attempt := 0
	for {
		attempt++
		src, err := open()
		if err == nil {
			if attempt > 1 {
				log.Printf("🔌 Replay source connected after %d attempts", attempt)
			}
			return src, nil
		}
		if attempt == 1 {
			log.Printf("⏳ Waiting for replay source: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open replay source: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

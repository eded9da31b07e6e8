package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const pumpBufferSize = 4096

// Pump copies src into dst until src reports EOF, a read or write fails, or
// ctx is cancelled. Chunks are decoded with dec first when it is non-nil.
// Zero-byte reads, as produced by serial read timeouts, are skipped. It
// returns the number of source bytes consumed.
func Pump(ctx context.Context, src io.Reader, dst io.Writer, dec *Decoder) (int64, error) {
	buffer := make([]byte, pumpBufferSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			chunk, derr := dec.Decode(buffer[:n])
			if derr != nil {
				return total, derr
			}
			if _, werr := dst.Write(chunk); werr != nil {
				return total, fmt.Errorf("failed to write chunk: %w", werr)
			}
			total += int64(n)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("failed to read from source: %w", err)
		}
	}
}

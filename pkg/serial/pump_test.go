package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader hands out its chunks one Read at a time and then io.EOF.
// Empty chunks become zero-byte reads.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPump_CopiesUntilEOF(t *testing.T) {
	var dst bytes.Buffer
	n, err := Pump(context.Background(), strings.NewReader("hello\nworld"), &dst, nil)
	if err != nil {
		t.Fatalf("Pump() error: %v", err)
	}
	if n != 11 {
		t.Errorf("Pump() = %d bytes, want 11", n)
	}
	if dst.String() != "hello\nworld" {
		t.Errorf("dst = %q", dst.String())
	}
}

func TestPump_SkipsZeroReads(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{[]byte("ab"), {}, {}, []byte("cd")}}
	var dst bytes.Buffer

	if _, err := Pump(context.Background(), src, &dst, nil); err != nil {
		t.Fatalf("Pump() error: %v", err)
	}
	if dst.String() != "abcd" {
		t.Errorf("dst = %q, want %q", dst.String(), "abcd")
	}
}

func TestPump_ReadError(t *testing.T) {
	cause := errors.New("device unplugged")
	src := &chunkReader{chunks: [][]byte{[]byte("x")}, err: cause}
	var dst bytes.Buffer

	n, err := Pump(context.Background(), src, &dst, nil)
	if !errors.Is(err, cause) {
		t.Errorf("Pump() error = %v, want %v", err, cause)
	}
	if n != 1 || dst.String() != "x" {
		t.Errorf("Pump() = %d, dst = %q", n, dst.String())
	}
}

func TestPump_WriteError(t *testing.T) {
	if _, err := Pump(context.Background(), strings.NewReader("x"), failingWriter{}, nil); err == nil {
		t.Error("Pump() should report write errors")
	}
}

func TestPump_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	n, err := Pump(ctx, strings.NewReader("never read"), &dst, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Pump() error = %v, want context.Canceled", err)
	}
	if n != 0 || dst.Len() != 0 {
		t.Errorf("cancelled Pump() copied %d bytes", n)
	}
}

func TestPump_Decodes(t *testing.T) {
	dec, err := NewDecoder("ISO-8859-1")
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}

	var dst bytes.Buffer
	n, err := Pump(context.Background(), bytes.NewReader([]byte{'c', 'a', 'f', 0xE9}), &dst, dec)
	if err != nil {
		t.Fatalf("Pump() error: %v", err)
	}
	if n != 4 {
		t.Errorf("Pump() = %d source bytes, want 4", n)
	}
	if dst.String() != "café" {
		t.Errorf("dst = %q, want %q", dst.String(), "café")
	}
}

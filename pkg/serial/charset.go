package serial

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Decoder converts bytes in a legacy single-byte charset to UTF-8. Devices
// on a serial line often speak Latin-1 or a DOS code page. Each byte maps to
// one character, so chunks can be decoded independently.
type Decoder struct {
	name string
	dec  *encoding.Decoder
}

// NewDecoder returns a decoder for charset. An empty name, "utf-8" or
// "ascii" yields a pass-through decoder.
func NewDecoder(charset string) (*Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return &Decoder{name: "UTF-8"}, nil
	}

	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}

	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		return nil, fmt.Errorf("charset %q is not a single-byte encoding", charset)
	}

	// MIME names are the familiar ones (ISO-8859-1 rather than ISO_8859-1:1987)
	name, err := ianaindex.MIME.Name(enc)
	if err != nil || name == "" {
		if name, err = ianaindex.IANA.Name(enc); err != nil {
			name = charset
		}
	}

	return &Decoder{name: name, dec: cm.NewDecoder()}, nil
}

// Name returns the canonical charset name
func (d *Decoder) Name() string {
	if d == nil {
		return "UTF-8"
	}
	return d.name
}

// Decode converts p to UTF-8. A nil or pass-through decoder returns p as is.
func (d *Decoder) Decode(p []byte) ([]byte, error) {
	if d == nil || d.dec == nil {
		return p, nil
	}
	out, err := d.dec.Bytes(p)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.name, err)
	}
	return out, nil
}

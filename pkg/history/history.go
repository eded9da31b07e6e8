// Package history records the raw byte stream fed into a terminal
package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultMaxSize bounds a transcript created with a non-positive size
const DefaultMaxSize = 10 * 1024 * 1024

// FileFormat represents different file export formats
type FileFormat int

const (
	FormatPlainText FileFormat = iota
	FormatTimestamped
	FormatJSON
)

// String returns the string representation of FileFormat
func (f FileFormat) String() string {
	switch f {
	case FormatPlainText:
		return "plain_text"
	case FormatTimestamped:
		return "timestamped"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat resolves a format name as used on the command line
func ParseFormat(name string) (FileFormat, error) {
	switch strings.ToLower(name) {
	case "plain", "plain_text", "text", "txt":
		return FormatPlainText, nil
	case "timestamped", "ts":
		return FormatTimestamped, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unsupported format: %s", name)
	}
}

// Entry is one chunk of bytes as it reached the terminal
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
	Length    int       `json:"length"`
}

// Validate checks if the entry is valid
func (e Entry) Validate() error {
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}

	if e.Data == nil {
		return fmt.Errorf("data cannot be nil")
	}

	if e.Length != len(e.Data) {
		return fmt.Errorf("length mismatch: expected %d, got %d", len(e.Data), e.Length)
	}

	return nil
}

// NewEntry copies data into an entry stamped with the current time
func NewEntry(data []byte) Entry {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return Entry{
		Timestamp: time.Now(),
		Data:      dataCopy,
		Length:    len(data),
	}
}

// Stats summarises a transcript
type Stats struct {
	Entries     int        `json:"entries"`
	Bytes       int        `json:"bytes"`
	MaxSize     int        `json:"max_size"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry *time.Time `json:"newest_entry,omitempty"`
}

// Transcript keeps the chunks written to it, dropping the oldest ones once
// their total size exceeds the maximum. It is an io.Writer so it can sit
// next to a terminal in an io.MultiWriter.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	maxSize int
}

// NewTranscript creates a transcript holding at most maxSize bytes
func NewTranscript(maxSize int) *Transcript {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Transcript{maxSize: maxSize}
}

// Write records a copy of p. Empty writes are not recorded.
func (t *Transcript) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.append(NewEntry(p))
	return len(p), nil
}

func (t *Transcript) append(entry Entry) {
	t.entries = append(t.entries, entry)
	t.size += entry.Length
	t.trim()
}

// trim drops the oldest entries until the size fits. A single entry larger
// than the limit is kept on its own.
func (t *Transcript) trim() {
	drop := 0
	for t.size > t.maxSize && len(t.entries)-drop > 1 {
		t.size -= t.entries[drop].Length
		drop++
	}
	if drop > 0 {
		t.entries = append([]Entry(nil), t.entries[drop:]...)
	}
}

// Len returns the number of recorded entries
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Size returns the number of recorded bytes
func (t *Transcript) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// MaxSize returns the byte limit
func (t *Transcript) MaxSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxSize
}

// SetMaxSize changes the byte limit, dropping old entries if needed
func (t *Transcript) SetMaxSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("size must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maxSize = size
	t.trim()
	return nil
}

// Entries returns copies of the entries in [start, start+count)
func (t *Transcript) Entries(start, count int) ([]Entry, error) {
	if start < 0 {
		return nil, fmt.Errorf("start cannot be negative")
	}

	if count < 0 {
		return nil, fmt.Errorf("count cannot be negative")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if start >= len(t.entries) {
		return []Entry{}, nil
	}
	if start+count > len(t.entries) {
		count = len(t.entries) - start
	}

	result := make([]Entry, count)
	for i := range result {
		e := t.entries[start+i]
		e.Data = append([]byte(nil), e.Data...)
		result[i] = e
	}
	return result, nil
}

// Bytes returns the recorded stream as one slice
func (t *Transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]byte, 0, t.size)
	for _, e := range t.entries {
		out = append(out, e.Data...)
	}
	return out
}

// Clear drops every entry
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
	t.size = 0
}

// Stats returns statistics about the transcript
func (t *Transcript) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		Entries: len(t.entries),
		Bytes:   t.size,
		MaxSize: t.maxSize,
	}
	if len(t.entries) > 0 {
		oldest := t.entries[0].Timestamp
		newest := t.entries[len(t.entries)-1].Timestamp
		stats.OldestEntry = &oldest
		stats.NewestEntry = &newest
	}
	return stats
}

// Replay writes the recorded chunks to w in order, one Write per entry, so
// the receiver sees the same chunk boundaries as the original stream
func (t *Transcript) Replay(w io.Writer) (int64, error) {
	entries, _ := t.Entries(0, t.Len())

	var total int64
	for _, e := range entries {
		n, err := w.Write(e.Data)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("failed to replay entry: %w", err)
		}
	}
	return total, nil
}

// SaveToFile saves the transcript to a file in the specified format
func (t *Transcript) SaveToFile(filename string, format FileFormat) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	entries, err := t.Entries(0, t.Len())
	if err != nil {
		return fmt.Errorf("failed to get entries: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatPlainText:
		err = saveAsPlainText(file, entries)
	case FormatTimestamped:
		err = saveAsTimestamped(file, entries)
	case FormatJSON:
		err = saveAsJSON(file, entries)
	default:
		err = fmt.Errorf("unsupported format: %v", format)
	}
	if err != nil {
		return err
	}

	return file.Close()
}

// saveAsPlainText writes the raw stream
func saveAsPlainText(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		if _, err := w.Write(entry.Data); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	return nil
}

// saveAsTimestamped writes one line per entry with escaped line breaks
func saveAsTimestamped(w io.Writer, entries []Entry) error {
	escaper := strings.NewReplacer("\r", "\\r", "\n", "\\n")
	for _, entry := range entries {
		line := fmt.Sprintf("[%s] %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			escaper.Replace(string(entry.Data)))

		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write timestamped data: %w", err)
		}
	}
	return nil
}

type transcriptFile struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
}

// saveAsJSON writes the entries as an indented JSON document
func saveAsJSON(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(transcriptFile{Entries: entries, Count: len(entries)}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// LoadFile reads a JSON transcript written by SaveToFile. The returned
// transcript is sized to hold every loaded entry.
func LoadFile(filename string) (*Transcript, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var doc transcriptFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}

	total := 0
	for i, e := range doc.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("invalid entry %d: %w", i, err)
		}
		total += e.Length
	}

	t := NewTranscript(max(total, DefaultMaxSize))
	for _, e := range doc.Entries {
		t.append(e)
	}
	return t, nil
}

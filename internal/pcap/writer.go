// Package pcap produces the legacy pcap byte stream consumed by Wireshark:
// one global file header followed by length-prefixed, timestamped records.
package pcap

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// LinkTypeUser0 marks the records as raw, undissected data. gopacket has no
// named constant for the user-reserved range.
const LinkTypeUser0 = layers.LinkType(147)

// DefaultSnaplen matches the conventional pcap snapshot length.
const DefaultSnaplen uint32 = 65535

// Frame is one captured bus message ready to be framed as a pcap record.
type Frame struct {
	Channel   string
	Payload   []byte
	Timestamp time.Time
}

// SinkWriteError wraps any failure to append to the output stream. It is
// fatal to a running capture.
type SinkWriteError struct {
	Err error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("pcap sink write: %v", e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// Writer appends pcap records to a single output stream. The file header is
// written once at construction; each frame becomes exactly one record, written
// atomically with respect to the stream (record header and payload in a single
// pcapgo write, serialized by the mutex).
type Writer struct {
	mu      sync.Mutex
	pw      *pcapgo.Writer
	closer  io.Closer
	snaplen uint32
	frames  uint64
}

// NewWriter writes the global pcap header to w and returns a record writer.
// Records are stamped with microsecond resolution and DLT USER0.
func NewWriter(w io.Writer, snaplen uint32) (*Writer, error) {
	if snaplen == 0 {
		snaplen = DefaultSnaplen
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, LinkTypeUser0); err != nil {
		return nil, &SinkWriteError{Err: err}
	}
	return &Writer{pw: pw, snaplen: snaplen}, nil
}

// OpenSink opens the capture output: the fifo path Wireshark hands over, or
// stdout when the path is empty. A fifo is opened append-only so a pre-created
// named pipe keeps its contents ordered.
func OpenSink(fifo string, snaplen uint32) (*Writer, error) {
	if fifo == "" {
		return NewWriter(os.Stdout, snaplen)
	}
	f, err := os.OpenFile(fifo, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &SinkWriteError{Err: err}
	}
	w, err := NewWriter(f, snaplen)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteFrame appends one record for f. Payloads longer than the snapshot
// length are truncated; the record keeps the original length so consumers see
// the truncation.
func (w *Writer) WriteFrame(f Frame) error {
	data := f.Payload
	origLen := len(data)
	if uint32(origLen) > w.snaplen {
		data = data[:w.snaplen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     f.Timestamp,
		CaptureLength: len(data),
		Length:        origLen,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.pw.WritePacket(ci, data); err != nil {
		return &SinkWriteError{Err: err}
	}
	w.frames++
	return nil
}

// Frames reports how many records have been written.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close closes the underlying file when the sink is file-backed. Stdout is
// left open for the invoking tool.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

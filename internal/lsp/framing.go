package lsp

import (
	"bytes"
	"fmt"
	"strconv"
)

var headerEnd = []byte("\r\n\r\n")

// Decoder splits a byte stream into Content-Length delimited frames.
//
// Bytes are fed in whatever chunks the transport produced. A header whose
// body has not fully arrived is remembered along with the bytes read so
// far, so a frame split across any number of reads decodes the same as one
// delivered whole.
type Decoder struct {
	buf []byte

	// length is the body length of the parsed header awaiting its body,
	// or -1 when the next bytes start a header.
	length int
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{length: -1}
}

// Feed appends bytes read from the transport.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame body. It returns nil, nil when the
// buffered bytes do not yet hold one. A header that cannot be parsed is
// dropped and reported as a *FrameError wrapping ErrMalformedFrame;
// decoding continues with the bytes after it.
func (d *Decoder) Next() ([]byte, error) {
	if d.length < 0 {
		end := bytes.Index(d.buf, headerEnd)
		if end < 0 {
			return nil, nil
		}
		header := d.buf[:end]
		d.buf = d.buf[end+len(headerEnd):]

		n, err := parseHeader(header)
		if err != nil {
			return nil, &FrameError{Raw: bytes.Clone(header), Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
		}
		d.length = n
	}

	if len(d.buf) < d.length {
		return nil, nil
	}

	body := d.buf[:d.length:d.length]
	d.buf = d.buf[d.length:]
	d.length = -1
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return body, nil
}

// Buffered returns the number of bytes held that are not yet part of a
// returned frame, excluding a parsed header.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Awaiting reports whether a header has been parsed and its body is still
// incomplete.
func (d *Decoder) Awaiting() bool {
	return d.length >= 0
}

// parseHeader returns the Content-Length of a header block. Other header
// fields are ignored.
func parseHeader(header []byte) (int, error) {
	length := -1
	for _, line := range bytes.Split(header, []byte("\r\n")) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			return 0, fmt.Errorf("bad header line %q", line)
		}
		if !bytes.EqualFold(bytes.TrimSpace(name), []byte("Content-Length")) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad Content-Length %q", value)
		}
		length = n
	}
	if length < 0 {
		return 0, fmt.Errorf("missing Content-Length")
	}
	return length, nil
}

// EncodeFrame prefixes body with its Content-Length header.
func EncodeFrame(body []byte) []byte {
	header := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	frame := make([]byte, 0, len(header)+len(body))
	frame = append(frame, header...)
	return append(frame, body...)
}

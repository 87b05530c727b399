package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Limits constrains decoder memory use while scanning for the sentinel.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 16 * 1024 * 1024}
}

// DecodeNext scans buf for the next complete frame. It returns the decoded
// frame and the number of bytes consumed, or consumed == 0 when no sentinel
// has arrived yet (the caller must read more; buffered bytes are never
// decoded speculatively). A malformed span is fatal for the connection.
func DecodeNext(buf []byte) (Frame, int, error) {
	end := bytes.IndexByte(buf, sentinel)
	if end < 0 {
		return Frame{}, 0, nil
	}
	f, err := decodeSpan(buf[:end])
	if err != nil {
		return Frame{}, 0, err
	}
	return f, end + 1, nil
}

// decodeSpan splits one sentinel-delimited span into its header array and
// the remaining raw payload text.
func decodeSpan(span []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(span))
	var elems []json.RawMessage
	if err := dec.Decode(&elems); err != nil {
		return Frame{}, fmt.Errorf("%w: header: %v", ErrMalformedFrame, err)
	}
	header, err := parseHeader(elems)
	if err != nil {
		return Frame{}, err
	}
	payload := span[dec.InputOffset():]
	return Frame{Header: header, Payload: append([]byte(nil), payload...)}, nil
}

func parseHeader(elems []json.RawMessage) (Header, error) {
	switch len(elems) {
	case 1:
		var name string
		if err := json.Unmarshal(elems[0], &name); err != nil {
			return Header{}, fmt.Errorf("%w: callback name: %v", ErrMalformedFrame, err)
		}
		return Header{Kind: KindCallback, Name: name}, nil
	case 2:
		if len(elems[0]) > 0 && elems[0][0] == '"' {
			var name string
			if err := json.Unmarshal(elems[0], &name); err != nil {
				return Header{}, fmt.Errorf("%w: command name: %v", ErrMalformedFrame, err)
			}
			var id uint32
			if err := json.Unmarshal(elems[1], &id); err != nil {
				return Header{}, fmt.Errorf("%w: command id: %v", ErrMalformedFrame, err)
			}
			return Header{Kind: KindCommand, Name: name, ID: id}, nil
		}
		var id uint32
		if err := json.Unmarshal(elems[0], &id); err != nil {
			return Header{}, fmt.Errorf("%w: command id: %v", ErrMalformedFrame, err)
		}
		var code uint32
		if err := json.Unmarshal(elems[1], &code); err != nil {
			return Header{}, fmt.Errorf("%w: result code: %v", ErrMalformedFrame, err)
		}
		return Header{Kind: KindReply, ID: id, Code: Code(code)}, nil
	default:
		return Header{}, fmt.Errorf("%w: header length %d", ErrMalformedFrame, len(elems))
	}
}

// FrameReader scans NUL-delimited frames off a stream, retaining partial
// data between reads.
type FrameReader struct {
	r      io.Reader
	buf    []byte
	limits Limits
}

func NewFrameReader(r io.Reader, limits Limits) *FrameReader {
	if limits.MaxFrameBytes <= 0 {
		limits = DefaultLimits()
	}
	return &FrameReader{r: r, buf: make([]byte, 0, 8192), limits: limits}
}

// Next blocks until one complete frame is available or the stream fails.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		f, consumed, err := DecodeNext(fr.buf)
		if err != nil {
			return Frame{}, err
		}
		if consumed > 0 {
			fr.buf = fr.buf[:copy(fr.buf, fr.buf[consumed:])]
			return f, nil
		}
		if len(fr.buf) >= fr.limits.MaxFrameBytes {
			return Frame{}, ErrFrameTooLarge
		}

		var chunk [8192]byte
		n, err := fr.r.Read(chunk[:])
		if n > 0 {
			fr.buf = append(fr.buf, chunk[:n]...)
			continue
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		return Frame{}, err
	}
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// sentinel terminates every frame. It can never appear inside valid JSON
// text, which makes it the sole framing delimiter.
const sentinel byte = 0x00

// EncodeCommand produces a command frame: ["name",id]<args>\0. args must be
// a JSON list; nil or empty args encode as [].
func EncodeCommand(name string, id uint32, args []byte) []byte {
	if len(args) == 0 {
		args = []byte("[]")
	}
	nameJSON, _ := json.Marshal(name)
	var b bytes.Buffer
	b.Grow(len(nameJSON) + len(args) + 16)
	b.WriteByte('[')
	b.Write(nameJSON)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(id), 10))
	b.WriteByte(']')
	b.Write(args)
	b.WriteByte(sentinel)
	return b.Bytes()
}

// EncodeRaw produces a headerless frame carrying a bare argument array.
func EncodeRaw(args []byte) []byte {
	if len(args) == 0 {
		args = []byte("[]")
	}
	out := make([]byte, 0, len(args)+1)
	out = append(out, args...)
	out = append(out, sentinel)
	return out
}

// EncodeFrame renders a decoded frame back to canonical wire bytes.
func EncodeFrame(f Frame) ([]byte, error) {
	header, err := encodeHeader(f.Header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(header)+len(f.Payload)+1)
	out = append(out, header...)
	out = append(out, f.Payload...)
	out = append(out, sentinel)
	return out, nil
}

func encodeHeader(h Header) ([]byte, error) {
	switch h.Kind {
	case KindReply:
		return []byte("[" + strconv.FormatUint(uint64(h.ID), 10) + "," + strconv.FormatUint(uint64(h.Code), 10) + "]"), nil
	case KindCallback:
		nameJSON, err := json.Marshal(h.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: callback name: %v", ErrMalformedFrame, err)
		}
		out := make([]byte, 0, len(nameJSON)+2)
		out = append(out, '[')
		out = append(out, nameJSON...)
		out = append(out, ']')
		return out, nil
	case KindCommand:
		nameJSON, err := json.Marshal(h.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: command name: %v", ErrMalformedFrame, err)
		}
		out := make([]byte, 0, len(nameJSON)+16)
		out = append(out, '[')
		out = append(out, nameJSON...)
		out = append(out, ',')
		out = strconv.AppendUint(out, uint64(h.ID), 10)
		out = append(out, ']')
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown header kind %d", ErrMalformedFrame, h.Kind)
	}
}

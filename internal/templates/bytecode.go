// SPDX-License-Identifier: MPL-2.0

package templates

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// BytecodePath is the bundle written in bytecode format.
	BytecodePath = "templates.gbx"
	// DataSegmentPath is the module mapping specifiers to bundle handles.
	DataSegmentPath = "data-segment.js"
)

var (
	bytecodeMagic = []byte("GBX1")

	// ErrInvalidBytecode is returned by DecodeBytecode for malformed bundles.
	ErrInvalidBytecode = errors.New("invalid template bytecode")
)

// Entry is one template of a decoded bytecode bundle.
type Entry struct {
	Handle    uint32
	Specifier string
	Block     string
}

// encodeBytecode lays templates out as:
//
//	"GBX1" | count u32 | { handle u32 | len u32 | specifier | len u32 | block }*
//
// Integers are little-endian. Handles follow the path order of templates.
func encodeBytecode(templates []Template) ([]byte, []byte, error) {
	var buf bytes.Buffer
	buf.Write(bytecodeMagic)
	writeU32(&buf, uint32(len(templates)))

	handles := make(map[string]uint32, len(templates))
	for i, tpl := range templates {
		handle := uint32(i)
		specifier := ""
		if tpl.Meta.Specifier != nil {
			specifier = *tpl.Meta.Specifier
			handles[specifier] = handle
		}
		writeU32(&buf, handle)
		writeString(&buf, specifier)
		writeString(&buf, tpl.Block)
	}

	table, err := json.Marshal(handles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode data segment: %w", err)
	}
	dataSegment := fmt.Sprintf("export const bytecode = %q;\nexport const handles = %s;\n", BytecodePath, table)
	return buf.Bytes(), []byte(dataSegment), nil
}

// DecodeBytecode reads a bundle written in bytecode format.
func DecodeBytecode(data []byte) ([]Entry, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, len(bytecodeMagic))
	if _, err := io.ReadFull(r, magic); err != nil || !bytes.Equal(magic, bytecodeMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidBytecode)
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if int64(count) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: count %d exceeds payload", ErrInvalidBytecode, count)
	}

	entries := make([]Entry, 0, count)
	for range count {
		var e Entry
		if e.Handle, err = readU32(r); err != nil {
			return nil, err
		}
		if e.Specifier, err = readString(r); err != nil {
			return nil, err
		}
		if e.Block, err = readString(r); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidBytecode, r.Len())
	}
	return entries, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated", ErrInvalidBytecode)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(r.Len()) {
		return "", fmt.Errorf("%w: truncated", ErrInvalidBytecode)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: truncated", ErrInvalidBytecode)
	}
	return string(b), nil
}

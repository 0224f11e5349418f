// Package loader manages isolated load contexts for compiled modules, the
// delegate-handle cache, and the hot-swap protocol that replaces a running
// module's code without restarting the host process.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Compiled module payloads start with a fixed header:
//
//	magic   "CMOD"          4 bytes
//	version u32 LE          4 bytes
//	flags   u32 LE          4 bytes (reserved, must be 0 for version 1)
//	assembly name           u32 length + bytes
//	exported type count     u32, then per type: u32 length + bytes
//	body                    u32 length + bytes
//
// The runtime validates only this header; semantic correctness of the body
// is the compiler pipeline's problem.

var payloadMagic = [4]byte{'C', 'M', 'O', 'D'}

const payloadVersion uint32 = 1

// ErrInvalidPayload is returned for any header validation failure;
// ErrPayloadTruncated wraps it for the specific case of short data.
var (
	ErrInvalidPayload   = errors.New("loader: invalid module payload")
	ErrPayloadTruncated = fmt.Errorf("%w: truncated", ErrInvalidPayload)
)

// PayloadHeader is the parsed metadata of a module payload.
type PayloadHeader struct {
	AssemblyName  string
	ExportedTypes []string
	BodySize      int
}

// EncodePayload builds a module payload from its parts. The compiler
// pipeline is the normal producer; the runtime keeps an encoder so tooling
// and tests can fabricate payloads.
func EncodePayload(assemblyName string, exportedTypes []string, body []byte) []byte {
	var buf []byte
	buf = append(buf, payloadMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, payloadVersion)
	buf = binary.LittleEndian.AppendUint32(buf, 0) // flags

	appendString := func(s string) {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	appendString(assemblyName)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(exportedTypes)))
	for _, t := range exportedTypes {
		appendString(t)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	return buf
}

// ValidatePayload checks the payload's magic, version, and structural
// bounds without retaining anything.
func ValidatePayload(data []byte) error {
	_, err := ParsePayload(data)
	return err
}

// ParsePayload validates the payload header and returns its metadata.
func ParsePayload(data []byte) (PayloadHeader, error) {
	var hdr PayloadHeader
	if len(data) < 12 {
		return hdr, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidPayload, len(data))
	}
	if [4]byte(data[:4]) != payloadMagic {
		return hdr, fmt.Errorf("%w: bad magic %q", ErrInvalidPayload, string(data[:4]))
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != payloadVersion {
		return hdr, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, version)
	}
	offset := 12 // magic + version + flags

	readString := func() (string, error) {
		if offset+4 > len(data) {
			return "", ErrPayloadTruncated
		}
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if length < 0 || offset+length > len(data) {
			return "", ErrPayloadTruncated
		}
		s := string(data[offset : offset+length])
		offset += length
		return s, nil
	}

	name, err := readString()
	if err != nil {
		return hdr, err
	}
	hdr.AssemblyName = name

	if offset+4 > len(data) {
		return hdr, ErrPayloadTruncated
	}
	typeCount := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	for i := 0; i < typeCount; i++ {
		t, err := readString()
		if err != nil {
			return hdr, err
		}
		hdr.ExportedTypes = append(hdr.ExportedTypes, t)
	}

	if offset+4 > len(data) {
		return hdr, ErrPayloadTruncated
	}
	bodyLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if offset+bodyLen > len(data) {
		return hdr, ErrPayloadTruncated
	}
	hdr.BodySize = bodyLen
	return hdr, nil
}

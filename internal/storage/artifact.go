package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/recall/internal/vector"
	"github.com/klauspost/compress/zstd"
)

// Artifact layout, little-endian:
//
//	magic   [4]byte "RCIX"
//	version uint16
//	kind    uint8  (vector.Kind)
//	flags   uint8  (bit 0: payload is zstd-compressed)
//	dims    uint32
//	count   uint32
//	payload        index-specific, see vector.Index.Export
const (
	artifactVersion uint16 = 1
	headerSize             = 16

	flagZstd  uint8 = 1 << 0
	knownFlag       = flagZstd
)

var artifactMagic = [4]byte{'R', 'C', 'I', 'X'}

var (
	ErrBadMagic           = errors.New("not an index artifact")
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
)

// Header is the fixed-size prefix of an index artifact.
type Header struct {
	Version uint16
	Kind    vector.Kind
	Flags   uint8
	Dims    uint32
	Count   uint32
}

// Compressed reports whether the payload is zstd-compressed.
func (h Header) Compressed() bool {
	return h.Flags&flagZstd != 0
}

func (h Header) marshal() []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], artifactMagic[:])
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	b[6] = uint8(h.Kind)
	b[7] = h.Flags
	binary.LittleEndian.PutUint32(b[8:12], h.Dims)
	binary.LittleEndian.PutUint32(b[12:16], h.Count)
	return b
}

// ReadHeader reads and validates the artifact header.
func ReadHeader(r io.Reader) (Header, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(b[0:4], artifactMagic[:]) {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version: binary.LittleEndian.Uint16(b[4:6]),
		Kind:    vector.Kind(b[6]),
		Flags:   b[7],
		Dims:    binary.LittleEndian.Uint32(b[8:12]),
		Count:   binary.LittleEndian.Uint32(b[12:16]),
	}
	if h.Version != artifactVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Kind != vector.KindHNSW && h.Kind != vector.KindFlat {
		return Header{}, fmt.Errorf("unsupported index kind %d", uint8(h.Kind))
	}
	if h.Flags&^knownFlag != 0 {
		return Header{}, fmt.Errorf("unsupported flags %#x", h.Flags)
	}
	if h.Dims == 0 {
		return Header{}, fmt.Errorf("dimensionality must be positive")
	}
	return h, nil
}

// EncodeArtifact writes idx as an artifact.
func EncodeArtifact(w io.Writer, idx vector.Index, compress bool) error {
	h := Header{
		Version: artifactVersion,
		Kind:    idx.Kind(),
		Dims:    uint32(idx.Dims()),
		Count:   uint32(idx.Len()),
	}
	if compress {
		h.Flags |= flagZstd
	}
	if _, err := w.Write(h.marshal()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if h.Count == 0 {
		return nil
	}
	if !compress {
		return idx.Export(w)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	if err := idx.Export(enc); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// DecodeArtifact reads a complete artifact. Any error means the artifact is unusable.
func DecodeArtifact(r io.Reader) (Header, vector.Index, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	idx, err := DecodePayload(h, r)
	if err != nil {
		return Header{}, nil, err
	}
	return h, idx, nil
}

// DecodePayload reads the payload that follows h and returns the populated index.
func DecodePayload(h Header, r io.Reader) (vector.Index, error) {
	idx, err := vector.New(h.Kind, int(h.Dims))
	if err != nil {
		return nil, err
	}
	if h.Count == 0 {
		return idx, nil
	}

	payload := r
	if h.Compressed() {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open compressed payload: %w", err)
		}
		defer dec.Close()
		payload = dec
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if err := importPayload(idx, data); err != nil {
		return nil, err
	}
	if idx.Len() != int(h.Count) {
		return nil, fmt.Errorf("header declares %d vectors, payload holds %d", h.Count, idx.Len())
	}
	return idx, nil
}

// importPayload converts a panic inside the index decoder into an error.
func importPayload(idx vector.Index, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode payload: %v", r)
		}
	}()
	if err := idx.Import(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

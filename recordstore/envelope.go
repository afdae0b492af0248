package recordstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	resourcekit "github.com/odalton/resourcekit"
)

var (
	// envelopeMagic is the 4-byte prefix for stored record envelopes.
	envelopeMagic = []byte("RKE1")

	// ErrInvalidMagic is returned when a value doesn't start with the expected magic bytes.
	ErrInvalidMagic = errors.New("invalid magic bytes: expected RKE1")

	// ErrChecksumMismatch is returned when a stored payload fails verification.
	ErrChecksumMismatch = errors.New("envelope checksum mismatch")

	// ErrBodyTooLarge is returned when the body exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("envelope body exceeds maximum size")
)

// MaxBodySize is the maximum allowed size for the compressed body (16 MiB).
const MaxBodySize = 16 * 1024 * 1024

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeEnvelope serialises a record into its stored form.
// Format: MAGIC (4 bytes) | CHECKSUM (32 bytes, BLAKE3 of body) |
// BODYLEN (uint32 big-endian) | BODY (zstd-compressed JSON).
func encodeEnvelope(rec *Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}

	body := zstdEncoder.EncodeAll(payload, nil)
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	sum := resourcekit.ChecksumBytes(body)

	var buf bytes.Buffer
	buf.Grow(len(envelopeMagic) + resourcekit.ChecksumSize + 4 + len(body))
	buf.Write(envelopeMagic)
	buf.Write(sum[:])
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(body))); err != nil { //nolint:gosec // body length is bounds-checked above
		return nil, fmt.Errorf("writing body length: %w", err)
	}
	buf.Write(body)

	return buf.Bytes(), nil
}

// decodeEnvelope parses a stored value, verifying the checksum before
// decompressing the body.
func decodeEnvelope(data []byte) (*Record, error) {
	headerLen := len(envelopeMagic) + resourcekit.ChecksumSize + 4
	if len(data) < headerLen {
		return nil, ErrInvalidMagic
	}
	if !bytes.Equal(data[:len(envelopeMagic)], envelopeMagic) {
		return nil, ErrInvalidMagic
	}

	var sum resourcekit.Checksum
	copy(sum[:], data[len(envelopeMagic):len(envelopeMagic)+resourcekit.ChecksumSize])

	bodyLen := binary.BigEndian.Uint32(data[len(envelopeMagic)+resourcekit.ChecksumSize : headerLen])
	if bodyLen > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	body := data[headerLen:]
	if len(body) != int(bodyLen) {
		return nil, fmt.Errorf("envelope body length mismatch: header says %d, got %d", bodyLen, len(body))
	}

	if got := resourcekit.ChecksumBytes(body); got != sum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, sum.ShortString(), got.ShortString())
	}

	payload, err := zstdDecoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}

	return &rec, nil
}

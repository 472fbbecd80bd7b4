package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	version byte = 2

	legacyVersion byte = 1
)

// Kind tags the entry shape a tier found in its backend.
type Kind byte

const (
	// KindLegacy entries carry only an absolute expiry and a payload.
	KindLegacy Kind = 1
	// KindCurrent entries carry expiry mode, validator and payload.
	KindCurrent Kind = 2
)

const (
	flagSliding   byte = 1 << 0
	flagPermanent byte = 1 << 1
)

// MaxValidatorLen is the longest validator a frame can carry.
const MaxValidatorLen = math.MaxUint16

var (
	ErrCorrupt = errors.New("multicache: corrupt entry")
	// ErrValidatorTooLong is returned for validators over MaxValidatorLen bytes.
	ErrValidatorTooLong = errors.New("multicache: validator too long")
	magic4     = [...]byte{'M', 'T', 'C', 'E'}
)

// Entry is the logical cache entry a tier materializes in its backend.
type Entry struct {
	Kind      Kind
	Sliding   bool
	Permanent bool
	ExpiresAt time.Time     // zero for permanent entries
	Window    time.Duration // sliding window; 0 unless Sliding
	Validator string
	Payload   []byte
}

// NewEntry builds a current-shape entry. ttl<=0 or permanent => never expires.
func NewEntry(payload []byte, validator string, ttl time.Duration, sliding, permanent bool, now time.Time) Entry {
	e := Entry{
		Kind:      KindCurrent,
		Validator: validator,
		Payload:   payload,
	}
	if permanent || ttl <= 0 {
		e.Permanent = true
		return e
	}
	e.ExpiresAt = now.Add(ttl)
	if sliding {
		e.Sliding = true
		e.Window = ttl
	}
	return e
}

func (e Entry) Expired(now time.Time) bool {
	if e.Permanent || e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// Touch returns e with its expiry pushed to now+Window for sliding entries.
// Other entries are returned unchanged.
func (e Entry) Touch(now time.Time) Entry {
	if !e.Sliding || e.Window <= 0 || e.Permanent {
		return e
	}
	e.ExpiresAt = now.Add(e.Window)
	return e
}

// TTL is the remaining lifetime at now; 0 means no expiry.
func (e Entry) TTL(now time.Time) time.Duration {
	if e.Permanent || e.ExpiresAt.IsZero() {
		return 0
	}
	d := e.ExpiresAt.Sub(now)
	if d <= 0 {
		// already expired; callers should not store it
		return time.Nanosecond
	}
	return d
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Encode writes a current entry:
//
//	magic(4) | ver(1) | kind(1) | flags(1) | expires(i64 be, unix ns) | window(i64 be, ns)
//	vallen(u16 be) | validator | plen(u32 be) | payload
func Encode(e Entry) ([]byte, error) {
	if err := CheckValidator(e.Validator); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8 + 8 + 2 + len(e.Validator) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(KindCurrent))

	var flags byte
	if e.Sliding {
		flags |= flagSliding
	}
	if e.Permanent {
		flags |= flagPermanent
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(e.ExpiresAt)))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.Window))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Validator)))
	buf.Write(u2[:])
	buf.WriteString(e.Validator)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// CheckValidator reports whether v fits in a frame.
func CheckValidator(v string) error {
	if len(v) > MaxValidatorLen {
		return fmt.Errorf("%w: %d > %d bytes", ErrValidatorTooLong, len(v), MaxValidatorLen)
	}
	return nil
}

// EncodeLegacy writes the older shape still found in long-lived backends:
//
//	magic(4) | ver(1)=1 | kind(1)=legacy | expires(i64 be, unix ns; 0 = never) | plen(u32 be) | payload
func EncodeLegacy(expiresAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(legacyVersion)
	buf.WriteByte(byte(KindLegacy))

	var u8 [8]byte
	var u4 [4]byte
	binary.BigEndian.PutUint64(u8[:], uint64(unixNano(expiresAt)))
	buf.Write(u8[:])
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)
	return buf.Bytes()
}

// Decode resolves the entry shape once; callers only ever see Entry.
func Decode(b []byte) (Entry, error) {
	if len(b) < 6 || !hasMagic(b) {
		return Entry{}, ErrCorrupt
	}
	switch {
	case b[4] == legacyVersion && Kind(b[5]) == KindLegacy:
		return decodeLegacy(b)
	case b[4] == version && Kind(b[5]) == KindCurrent:
		return decodeCurrent(b)
	default:
		return Entry{}, ErrCorrupt
	}
}

func decodeLegacy(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr {
		return Entry{}, ErrCorrupt
	}
	off := 6
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	e := Entry{
		Kind:      KindLegacy,
		ExpiresAt: fromUnixNano(exp),
		Payload:   b[off : off+plen],
	}
	e.Permanent = e.ExpiresAt.IsZero()
	return e, nil
}

func decodeCurrent(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1 + 8 + 8 + 2
	if len(b) < hdr {
		return Entry{}, ErrCorrupt
	}
	off := 6
	flags := b[off]
	off++

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	window := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if window < 0 {
		return Entry{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if vlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	validator := string(b[off : off+vlen])
	off += vlen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off { // rejects truncation and trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Kind:      KindCurrent,
		Sliding:   flags&flagSliding != 0,
		Permanent: flags&flagPermanent != 0,
		ExpiresAt: fromUnixNano(exp),
		Window:    time.Duration(window),
		Validator: validator,
		Payload:   b[off : off+plen],
	}, nil
}

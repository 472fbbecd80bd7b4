package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func mustEncode(t *testing.T, e Entry) []byte {
	t.Helper()
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	return b
}

func TestEncodeRejectsOversizeValidator(t *testing.T) {
	long := strings.Repeat("v", MaxValidatorLen+1)
	if _, err := Encode(NewEntry([]byte("x"), long, time.Minute, false, false, time.Now())); !errors.Is(err, ErrValidatorTooLong) {
		t.Fatalf("Encode: got %v want ErrValidatorTooLong", err)
	}
	edge := strings.Repeat("v", MaxValidatorLen)
	got := mustDecode(t, mustEncode(t, NewEntry([]byte("x"), edge, time.Minute, false, false, time.Now())))
	if got.Validator != edge {
		t.Fatalf("validator of max length did not round trip")
	}
}

func TestCurrentRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []Entry{
		NewEntry(nil, "", time.Minute, false, false, now),
		NewEntry([]byte("hello"), "v-1", time.Minute, true, false, now),
		NewEntry([]byte{0, 1, 2, 3, 4}, strings.Repeat("x", 64), time.Hour, false, true, now),
	}
	for _, tc := range cases {
		got := mustDecode(t, mustEncode(t, tc))
		if got.Kind != KindCurrent {
			t.Fatalf("kind: got %d want %d", got.Kind, KindCurrent)
		}
		if got.Sliding != tc.Sliding || got.Permanent != tc.Permanent {
			t.Fatalf("flags: got sliding=%v permanent=%v want %v/%v", got.Sliding, got.Permanent, tc.Sliding, tc.Permanent)
		}
		if !got.ExpiresAt.Equal(tc.ExpiresAt) {
			t.Fatalf("expiry: got %v want %v", got.ExpiresAt, tc.ExpiresAt)
		}
		if got.Window != tc.Window {
			t.Fatalf("window: got %v want %v", got.Window, tc.Window)
		}
		if got.Validator != tc.Validator {
			t.Fatalf("validator: got %q want %q", got.Validator, tc.Validator)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestLegacyDecodesToTaggedVariant(t *testing.T) {
	exp := time.Unix(1_700_000_060, 0)
	got := mustDecode(t, EncodeLegacy(exp, []byte("old")))
	if got.Kind != KindLegacy {
		t.Fatalf("kind: got %d want legacy", got.Kind)
	}
	if got.Sliding || got.Permanent || got.Validator != "" {
		t.Fatalf("legacy entry should be absolute with no validator: %+v", got)
	}
	if !got.ExpiresAt.Equal(exp) || string(got.Payload) != "old" {
		t.Fatalf("legacy fields mismatch: %+v", got)
	}

	perm := mustDecode(t, EncodeLegacy(time.Time{}, []byte("forever")))
	if !perm.Permanent {
		t.Fatalf("legacy entry with zero expiry should be permanent")
	}
}

func TestDecodeRejectsTrailingAndTruncated(t *testing.T) {
	enc := mustEncode(t, NewEntry([]byte("x"), "v", time.Minute, false, false, time.Now()))

	trailing := append(append([]byte(nil), enc...), 0xDE, 0xAD)
	if _, err := Decode(trailing); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated payload")
	}

	leg := EncodeLegacy(time.Now(), []byte("abc"))
	if _, err := Decode(append(leg, 0x00)); err == nil {
		t.Fatalf("expected error on legacy trailing bytes")
	}
}

func TestDecodeCorruptHeaders(t *testing.T) {
	enc := mustEncode(t, NewEntry([]byte("abc"), "v", time.Minute, false, false, time.Now()))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = byte(KindLegacy) // current version with legacy kind
	if _, err := Decode(badKind); err == nil {
		t.Fatalf("expected error on version/kind mismatch")
	}

	// validator length pointing past the buffer
	badVal := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badVal[23:25], 0xFFFF)
	if _, err := Decode(badVal); err == nil {
		t.Fatalf("expected error on oversized validator length")
	}

	if _, err := Decode([]byte("not-wire-format")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}

func TestExpiryAndTouch(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	abs := NewEntry(nil, "", time.Minute, false, false, now)
	if abs.Expired(now.Add(59 * time.Second)) {
		t.Fatalf("absolute entry expired early")
	}
	if !abs.Expired(now.Add(time.Minute)) {
		t.Fatalf("absolute entry should expire at its deadline")
	}
	if touched := abs.Touch(now.Add(30 * time.Second)); !touched.ExpiresAt.Equal(abs.ExpiresAt) {
		t.Fatalf("Touch must not move an absolute expiry")
	}

	sl := NewEntry(nil, "", time.Minute, true, false, now)
	sl = sl.Touch(now.Add(50 * time.Second))
	if sl.Expired(now.Add(90 * time.Second)) {
		t.Fatalf("sliding entry should have been extended")
	}
	if !sl.Expired(now.Add(110 * time.Second)) {
		t.Fatalf("sliding entry should expire one window after last touch")
	}

	perm := NewEntry(nil, "", time.Minute, true, true, now)
	if perm.Expired(now.Add(100 * 365 * 24 * time.Hour)) {
		t.Fatalf("permanent entry expired")
	}
	if perm.TTL(now) != 0 {
		t.Fatalf("permanent entry TTL should be 0 (no expiry)")
	}
	if ttl := abs.TTL(now.Add(15 * time.Second)); ttl != 45*time.Second {
		t.Fatalf("TTL: got %v want 45s", ttl)
	}
}

package hwaddr

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestStringRoundtrip(t *testing.T) {
	a := Addr{0xaa, 0x1b, 0x00, 0xdd, 0xee, 0x0f}

	s := a.String()
	if s != "aa:1b:00:dd:ee:0f" {
		t.Fatalf("unexpected string form: %s", s)
	}

	b, err := FromString(s)
	if err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatalf("roundtrip mismatch: %v != %v", b, a)
	}
}

func TestFromStringAcceptsUpperCase(t *testing.T) {
	a, err := FromString("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("canonical form not lower-case: %s", a.String())
	}
}

func TestFromStringRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"aa:bb:cc:dd:ee",
		"aa:bb:cc:dd:ee:ff:00",
		"aa:bb:cc:dd:ee:f",
		"aa:bb:cc:dd:ee:fff",
		"aa:bb:cc:dd:ee:zz",
		"aabbccddeeff",
	}
	for _, s := range bad {
		if _, err := FromString(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestMarshalBinaryRoundtrip(t *testing.T) {
	a, err := Random()
	if err != nil {
		t.Fatal(err)
	}

	enc, err := cbor.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}

	var b Addr
	if err := cbor.Unmarshal(enc, &b); err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatalf("CBOR roundtrip mismatch: %v != %v", b, a)
	}
}

func TestMarshalJSONRoundtrip(t *testing.T) {
	a := FromStringMustParse("01:02:03:04:05:06")

	enc, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(enc) != `"01:02:03:04:05:06"` {
		t.Fatalf("unexpected JSON form: %s", enc)
	}

	var b Addr
	if err := json.Unmarshal(enc, &b); err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatalf("JSON roundtrip mismatch: %v != %v", b, a)
	}
}

func TestUnmarshalBinaryRejectsWrongLength(t *testing.T) {
	var a Addr
	if err := a.UnmarshalBinary([]byte{1, 2, 3}); err != ErrorInvalidAddressLength {
		t.Fatalf("expected ErrorInvalidAddressLength, got %v", err)
	}
}

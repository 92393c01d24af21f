package hwaddr

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Size is the length of a link-layer address in bytes.
const Size = 6

var ErrorInvalidAddressString = errors.New("invalid address string")
var ErrorInvalidAddressLength = errors.New("address must be 6 bytes")

// Addr is a raw 6-byte link-layer address. Its textual form is six
// colon-separated lower-case hex octets ("aa:bb:cc:dd:ee:ff"); the mapping is
// deterministic and injective, so the string doubles as a stable map key.
// Addr implements the MarshalBinary and UnmarshalBinary interfaces to assist
// CBOR encoding and avoid redundancy.
type Addr [Size]byte

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Addr) MarshalBinary() ([]byte, error) {
	return a[:], nil
}

func (a *Addr) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrorInvalidAddressLength
	}
	copy(a[:], data)
	return nil
}

func (a Addr) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Addr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	addr, err := FromString(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// FromString parses the colon-separated hex form. Upper-case hex digits are
// accepted; the canonical form produced by String() is lower-case.
func FromString(s string) (Addr, error) {
	var a Addr

	parts := strings.Split(s, ":")
	if len(parts) != Size {
		return a, ErrorInvalidAddressString
	}
	for i, part := range parts {
		if len(part) != 2 {
			return a, ErrorInvalidAddressString
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return a, ErrorInvalidAddressString
		}
		a[i] = b[0]
	}

	return a, nil
}

func FromStringMustParse(s string) Addr {
	a, err := FromString(s)
	if err != nil {
		log.Fatalf("Failed to parse address: %v", err)
	}
	return a
}

func FromBytes(data []byte) (Addr, error) {
	var a Addr
	if len(data) != Size {
		return a, ErrorInvalidAddressLength
	}
	copy(a[:], data)
	return a, nil
}

// Random generates a random address. Used by tests and simulated links.
func Random() (Addr, error) {
	var a Addr
	if _, err := rand.Read(a[:]); err != nil {
		return a, err
	}
	return a, nil
}

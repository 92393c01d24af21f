package protocol

import (
	"bytes"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		tag     Tag
		body    []byte
	}{
		{"peer no body", []byte("PEER:"), TagPeer, []byte{}},
		{"ack with body", []byte("ACK:extra"), TagAck, []byte("extra")},
		{"ping", []byte("PING:"), TagPing, []byte{}},
		{"plain application payload", []byte("hello world"), TagNone, []byte("hello world")},
		{"unrecognized tag stays opaque", []byte("WEIRD:payload"), TagNone, []byte("WEIRD:payload")},
		{"lower case tag stays opaque", []byte("peer:x"), TagNone, []byte("peer:x")},
		{"empty payload", []byte{}, TagNone, []byte{}},
		{"bare delimiter", []byte(":"), TagNone, []byte(":")},
		{"body with delimiters", []byte("PING:a:b:c"), TagPing, []byte("a:b:c")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Parse(tt.payload)
			if msg.Tag != tt.tag {
				t.Fatalf("tag mismatch: got %q want %q", msg.Tag, tt.tag)
			}
			if !bytes.Equal(msg.Body, tt.body) {
				t.Fatalf("body mismatch: got %q want %q", msg.Body, tt.body)
			}
		})
	}
}

func TestParseTruncatesBeforeSplit(t *testing.T) {
	// The delimiter sits beyond MaxPayload, so the truncated payload has no
	// tag and must come back opaque.
	payload := append(bytes.Repeat([]byte("x"), MaxPayload+10), []byte(":tail")...)

	msg := Parse(payload)
	if msg.Tag != TagNone {
		t.Fatalf("expected TagNone, got %q", msg.Tag)
	}
	if len(msg.Body) != MaxPayload {
		t.Fatalf("body length %d, want %d", len(msg.Body), MaxPayload)
	}
}

func TestParseOversizedTagged(t *testing.T) {
	payload := Encode(TagAck, bytes.Repeat([]byte("y"), 2*MaxPayload))
	padded := append(payload, bytes.Repeat([]byte("z"), 20)...)

	msg := Parse(padded)
	if msg.Tag != TagAck {
		t.Fatalf("expected TagAck after truncation, got %q", msg.Tag)
	}
	if len(msg.Body) != MaxPayload-len(TagAck)-1 {
		t.Fatalf("body length %d, want %d", len(msg.Body), MaxPayload-len(TagAck)-1)
	}
}

func TestEncode(t *testing.T) {
	enc := Encode(TagPeer, nil)
	if string(enc) != "PEER:" {
		t.Fatalf("unexpected encoding: %q", enc)
	}

	enc = Encode(TagAck, []byte("body"))
	if string(enc) != "ACK:body" {
		t.Fatalf("unexpected encoding: %q", enc)
	}
}

func TestEncodeCapsAtMaxPayload(t *testing.T) {
	enc := Encode(TagPing, bytes.Repeat([]byte("a"), 2*MaxPayload))
	if len(enc) != MaxPayload {
		t.Fatalf("encoded length %d, want %d", len(enc), MaxPayload)
	}
	if !bytes.HasPrefix(enc, []byte("PING:")) {
		t.Fatalf("tag prefix lost after truncation: %q", enc[:10])
	}
}

func TestTruncateShortPayloadUntouched(t *testing.T) {
	in := []byte("short")
	out := Truncate(in)
	if len(out) != len(in) {
		t.Fatalf("short payload was altered: %d != %d", len(out), len(in))
	}
}

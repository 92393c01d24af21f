// Package protocol implements the payload framing shared by all node roles.
// A payload is at most MaxPayload bytes; an optional "TAG:" prefix marks
// control traffic, everything else is an opaque application payload.
package protocol

import "bytes"

const (
	// MaxPayload is the largest payload the link accepts. Longer payloads are
	// truncated, never rejected.
	MaxPayload = 250

	// Delimiter separates the tag from the body. Only the first occurrence is
	// significant.
	Delimiter = ':'
)

// Tag identifies control traffic.
type Tag string

const (
	// TagNone marks an application payload (no recognized tag prefix).
	TagNone Tag = ""

	// TagPeer is the discovery announcement broadcast by nodes looking for peers.
	TagPeer Tag = "PEER"

	// TagAck is the handshake acknowledgement a controller unicasts back.
	TagAck Tag = "ACK"

	// TagPing is the liveness probe a controller unicasts to its peers.
	TagPing Tag = "PING"
)

// Message is the decoded form of an inbound payload. For TagNone, Body is the
// whole truncated payload; for control tags it is everything after the
// delimiter. Body aliases the input slice.
type Message struct {
	Tag  Tag
	Body []byte
}

// Truncate caps a payload at MaxPayload bytes. The result aliases the input.
func Truncate(payload []byte) []byte {
	if len(payload) > MaxPayload {
		return payload[:MaxPayload]
	}
	return payload
}

// Parse decodes a payload. Truncation happens before the tag split, so a
// delimiter beyond MaxPayload is never seen. Payloads without a delimiter, or
// with an unrecognized tag, come back as TagNone in full.
func Parse(payload []byte) Message {
	p := Truncate(payload)

	head, rest, found := bytes.Cut(p, []byte{Delimiter})
	if !found {
		return Message{Tag: TagNone, Body: p}
	}

	switch Tag(head) {
	case TagPeer, TagAck, TagPing:
		return Message{Tag: Tag(head), Body: rest}
	}

	return Message{Tag: TagNone, Body: p}
}

// Encode frames a control message. The result never exceeds MaxPayload; an
// oversized body is truncated to fit behind the tag.
func Encode(tag Tag, body []byte) []byte {
	buf := make([]byte, 0, len(tag)+1+len(body))
	buf = append(buf, tag...)
	buf = append(buf, Delimiter)
	buf = append(buf, body...)
	return Truncate(buf)
}

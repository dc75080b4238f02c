// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package message

import (
	"bytes"
	"fmt"
)

// reader walks an ordered sequence of message parts.
type reader struct {
	parts [][]byte
}

// readPart consumes the next part.
func (r *reader) readPart() ([]byte, error) {
	if len(r.parts) == 0 {
		return nil, fmt.Errorf("%w: missing message part", ErrMalformed)
	}
	part := r.parts[0]
	r.parts = r.parts[1:]
	return part, nil
}

// readOptional consumes an optional section: a single empty part when
// the value is absent, or a nonempty part followed by an empty
// delimiter when present. A nonempty part without its delimiter is not
// a valid optional section.
func (r *reader) readOptional() ([]byte, error) {
	if len(r.parts) == 0 {
		return nil, nil
	}
	if len(r.parts[0]) == 0 {
		r.parts = r.parts[1:]
		return nil, nil
	}
	if len(r.parts) < 2 || len(r.parts[1]) != 0 {
		return nil, fmt.Errorf("%w: optional section missing its delimiter", ErrMalformed)
	}
	value := r.parts[0]
	r.parts = r.parts[2:]
	return value, nil
}

// readMany consumes parts until an empty delimiter or the end of the
// sequence. The delimiter, when present, is consumed but not returned.
func (r *reader) readMany() [][]byte {
	var out [][]byte
	for len(r.parts) > 0 {
		part := r.parts[0]
		r.parts = r.parts[1:]
		if len(part) == 0 {
			break
		}
		out = append(out, part)
	}
	return out
}

// Decode parses a sequence of message parts into a typed message.
// It returns ErrMalformed on framing violations and
// ErrUnsupportedVersion when the framing is valid but the version byte
// is not ProtocolVersion.
func Decode(parts [][]byte) (Message, error) {
	r := &reader{parts: parts}

	addr, err := r.readOptional()
	if err != nil {
		return nil, err
	}

	head, err := r.readPart()
	if err != nil {
		return nil, err
	}
	if len(head) != len(protocolHeader) || !bytes.Equal(head[:len(ProtocolName)], []byte(ProtocolName)) {
		return nil, fmt.Errorf("%w: bad protocol magic", ErrMalformed)
	}
	if head[len(ProtocolName)] != ProtocolVersion {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedVersion, head[len(ProtocolName)])
	}

	tag, err := r.readPart()
	if err != nil {
		return nil, err
	}
	if len(tag) != 1 || !Kind(tag[0]).valid() {
		return nil, fmt.Errorf("%w: invalid type tag", ErrMalformed)
	}

	msg, err := decodeBody(Kind(tag[0]), r)
	if err != nil {
		return nil, err
	}
	msg.SetAddress(addr)
	return msg, nil
}

// decodeBody parses the kind-specific sections following the header.
func decodeBody(kind Kind, r *reader) (Message, error) {
	switch kind {
	case KindRegistration:
		service, err := r.readPart()
		if err != nil {
			return nil, err
		}
		return NewRegistration(string(service)), nil

	case KindPing:
		return &Ping{}, nil
	case KindPong:
		return &Pong{}, nil
	case KindReconnect:
		return &Reconnect{}, nil

	case KindRequest:
		service, err := r.readPart()
		if err != nil {
			return nil, err
		}
		client, err := r.readOptional()
		if err != nil {
			return nil, err
		}
		return &Request{
			Service:  string(service),
			Client:   client,
			Metadata: r.readMany(),
			Data:     r.readMany(),
		}, nil

	case KindReply:
		client, err := r.readOptional()
		if err != nil {
			return nil, err
		}
		return &Reply{
			Client:   client,
			Metadata: r.readMany(),
			Data:     r.readMany(),
		}, nil
	}
	// Unreachable: the tag was validated above.
	return nil, fmt.Errorf("%w: invalid type tag", ErrMalformed)
}

// Encode serializes a message into its wire parts: the optional
// address, the empty delimiter, the protocol header, the type tag and
// the kind-specific sections.
func Encode(msg Message) [][]byte {
	parts := make([][]byte, 0, 8)
	if addr := msg.Address(); len(addr) > 0 {
		parts = append(parts, addr)
	}
	parts = append(parts, []byte{}, protocolHeader, []byte{byte(msg.Kind())})

	switch m := msg.(type) {
	case *Registration:
		parts = append(parts, []byte(m.Service))
	case *Request:
		parts = append(parts, []byte(m.Service))
		parts = appendOptional(parts, m.Client)
		parts = appendMany(parts, m.Metadata)
		parts = append(parts, m.Data...)
	case *Reply:
		parts = appendOptional(parts, m.Client)
		parts = appendMany(parts, m.Metadata)
		parts = append(parts, m.Data...)
	}
	return parts
}

// appendOptional emits an optional section: the value followed by an
// empty delimiter, or a single empty part when absent.
func appendOptional(parts [][]byte, value []byte) [][]byte {
	if len(value) > 0 {
		return append(parts, value, []byte{})
	}
	return append(parts, []byte{})
}

// appendMany emits a multi-part section terminated by an empty
// delimiter.
func appendMany(parts, section [][]byte) [][]byte {
	parts = append(parts, section...)
	return append(parts, []byte{})
}

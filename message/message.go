// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package message implements the DagBox wire protocol: a self-describing
// multi-part message format with a typed header, versioning, optional
// routing addresses and six message kinds.
//
// Every message starts with an optional routing address, an empty
// delimiter part, the protocol magic "DGBX" followed by a version byte,
// and a one-byte type tag. The sections that follow depend on the kind.
package message

import (
	"errors"
	"fmt"
)

// Protocol constants shared by every message.
const (
	// ProtocolName is the magic identifying the DagBox protocol on the wire.
	ProtocolName = "DGBX"
	// ProtocolVersion is the protocol revision this package speaks.
	ProtocolVersion byte = 0x01
)

// protocolHeader is the complete header part: magic followed by version.
var protocolHeader = []byte{'D', 'G', 'B', 'X', ProtocolVersion}

var (
	// ErrMalformed reports a framing violation. The peer is speaking
	// something that is not the DagBox protocol.
	ErrMalformed = errors.New("message: malformed")
	// ErrUnsupportedVersion reports valid framing carrying a protocol
	// version this package does not speak.
	ErrUnsupportedVersion = errors.New("message: unsupported protocol version")
)

// Kind is the tag byte identifying a message type on the wire.
type Kind byte

const (
	KindRegistration Kind = 0x01
	KindPing         Kind = 0x02
	KindPong         Kind = 0x03
	KindRequest      Kind = 0x04
	KindReply        Kind = 0x05
	KindReconnect    Kind = 0x06
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindRequest:
		return "request"
	case KindReply:
		return "reply"
	case KindReconnect:
		return "reconnect"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(k))
}

// valid reports whether the tag falls in the defined range.
func (k Kind) valid() bool {
	return k >= KindRegistration && k <= KindReconnect
}

// Message is implemented by all six message kinds. Use a type switch
// over the concrete types to dispatch on the kind.
type Message interface {
	// Kind returns the type tag of the message.
	Kind() Kind
	// Address returns the routing address attached to the message,
	// or nil when none is attached.
	Address() []byte
	// SetAddress attaches a routing address, replacing any previous
	// one. Passing nil clears it.
	SetAddress(addr []byte)
}

// header carries the routing envelope common to every message kind.
type header struct {
	address []byte
}

func (h *header) Address() []byte        { return h.address }
func (h *header) SetAddress(addr []byte) { h.address = addr }

// Registration declares that the sender provides a service. The broker
// echoes it back as an acknowledgment.
type Registration struct {
	header
	Service string
}

// NewRegistration creates a registration for the named service.
func NewRegistration(service string) *Registration {
	return &Registration{Service: service}
}

func (*Registration) Kind() Kind { return KindRegistration }

// Ping is a liveness probe. The receiver answers with a Pong.
type Ping struct {
	header
}

// NewPing creates a ping.
func NewPing() *Ping { return &Ping{} }

func (*Ping) Kind() Kind { return KindPing }

// Pong answers a Ping.
type Pong struct {
	header
}

// PongFromPing promotes a ping into a pong, preserving the routing
// envelope so the answer goes back to the sender.
func PongFromPing(ping *Ping) *Pong {
	return &Pong{header: ping.header}
}

func (*Pong) Kind() Kind { return KindPong }

// Reconnect tells a worker that the broker has no record of it and it
// should register again. Only flows broker to worker.
type Reconnect struct {
	header
}

// ReconnectFromPing promotes a ping into a reconnect, preserving the
// routing envelope.
func ReconnectFromPing(ping *Ping) *Reconnect {
	return &Reconnect{header: ping.header}
}

func (*Reconnect) Kind() Kind { return KindReconnect }

// Request is a work item for a service. Metadata parts are opaque to
// the broker and workers; they come back verbatim on the reply so
// clients can correlate. Data parts carry the payload, in whatever
// format the service defines.
type Request struct {
	header
	Service string
	// Client is the address of the originating client. The broker
	// fills it in when a client submits a request directly.
	Client   []byte
	Metadata [][]byte
	Data     [][]byte
}

// NewRequest creates a request for the named service. All metadata and
// data parts must be nonempty; an empty part would terminate its
// section early on the wire.
func NewRequest(service string, metadata, data [][]byte) *Request {
	return &Request{Service: service, Metadata: metadata, Data: data}
}

func (*Request) Kind() Kind { return KindRequest }

// Reply is the result of a request.
type Reply struct {
	header
	Client   []byte
	Metadata [][]byte
	Data     [][]byte
}

// ReplyFromRequest promotes a request into a reply, keeping the routing
// envelope, client address, metadata and data.
func ReplyFromRequest(req *Request) *Reply {
	return &Reply{
		header:   req.header,
		Client:   req.Client,
		Metadata: req.Metadata,
		Data:     req.Data,
	}
}

func (*Reply) Kind() Kind { return KindReply }

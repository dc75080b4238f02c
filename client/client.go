// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client submits requests to a DagBox broker and receives the
// replies. Callers attach metadata parts to correlate replies with
// requests; the bus echoes metadata back verbatim.
package client

import (
	"fmt"
	"time"

	"github.com/DagBox/DagBox/message"
	"github.com/DagBox/DagBox/transport"
)

// Client drives a dealer socket connected to the broker. A client is
// owned by a single goroutine.
type Client struct {
	sock transport.Conn
}

// New creates a client over a dealer socket connected to the broker.
func New(sock transport.Conn) *Client {
	return &Client{sock: sock}
}

// Submit sends a request for the named service. Replies may come back
// in any order; use metadata to correlate.
func (c *Client) Submit(service string, metadata, data [][]byte) error {
	req := message.NewRequest(service, metadata, data)
	if err := c.sock.SendParts(message.Encode(req)); err != nil {
		return fmt.Errorf("client: submit: %w", err)
	}
	return nil
}

// Recv waits up to timeout for the next reply. It returns (nil, nil)
// when the timeout elapses; the service may have no workers, in which
// case the request was dropped and should be resubmitted.
func (c *Client) Recv(timeout time.Duration) (*message.Reply, error) {
	parts, err := c.sock.RecvParts(timeout)
	if err != nil {
		return nil, fmt.Errorf("client: recv: %w", err)
	}
	if parts == nil {
		return nil, nil
	}
	msg, err := message.Decode(parts)
	if err != nil {
		return nil, fmt.Errorf("client: recv: %w", err)
	}
	reply, ok := msg.(*message.Reply)
	if !ok {
		return nil, fmt.Errorf("client: unexpected %s message", msg.Kind())
	}
	return reply, nil
}

// Call submits a request and waits up to timeout for a reply. There is
// no delivery guarantee on the bus, so a timeout returns (nil, nil)
// and the caller decides whether to retry.
func (c *Client) Call(service string, metadata, data [][]byte, timeout time.Duration) (*message.Reply, error) {
	if err := c.Submit(service, metadata, data); err != nil {
		return nil, err
	}
	return c.Recv(timeout)
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.sock.Close()
}

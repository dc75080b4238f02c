// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport provides the socket facade the DagBox components
// talk through. It wraps zmq4 sockets with atomic multi-part send and
// a timeout-capable receive.
//
// The broker uses a router socket, which prepends the sender's address
// to each received message and routes each send by its leading part.
// Workers and clients use dealer sockets, which carry no automatic
// envelope.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/destiny/zmq4/v25"
)

// ErrClosed is returned by operations on a closed socket.
var ErrClosed = errors.New("transport: socket closed")

// Conn is the contract the broker, assistants and clients require from
// a socket: atomic multi-part delivery with bounded receives.
type Conn interface {
	// SendParts transmits all parts as one atomic multi-part message.
	SendParts(parts [][]byte) error
	// RecvParts waits up to timeout for the next complete multi-part
	// message. It returns (nil, nil) when the timeout elapses without
	// a message.
	RecvParts(timeout time.Duration) ([][]byte, error)
	// Close releases the socket. Pending receives fail with ErrClosed.
	Close() error
}

// Socket implements Conn over a zmq4 socket.
type Socket struct {
	sock zmq4.Socket
	recv chan recvResult
	done chan struct{}
	once sync.Once
	cerr error
}

type recvResult struct {
	parts [][]byte
	err   error
}

// NewRouter creates a router socket bound to the endpoint. The broker
// listens here.
func NewRouter(ctx context.Context, endpoint string) (*Socket, error) {
	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: bind %s: %w", endpoint, err)
	}
	return wrap(sock), nil
}

// NewDealer creates a dealer socket connected to the endpoint. Workers
// and clients use it to reach the broker.
func NewDealer(ctx context.Context, endpoint string) (*Socket, error) {
	sock := zmq4.NewDealer(ctx)
	if err := sock.Dial(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: connect %s: %w", endpoint, err)
	}
	return wrap(sock), nil
}

func wrap(sock zmq4.Socket) *Socket {
	s := &Socket{
		sock: sock,
		recv: make(chan recvResult),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump moves received messages onto a channel so RecvParts can select
// against a timer. zmq4 sockets have no receive deadline; a single
// reader goroutine per socket keeps message order intact.
func (s *Socket) pump() {
	for {
		msg, err := s.sock.Recv()
		select {
		case s.recv <- recvResult{parts: msg.Frames, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// SendParts implements Conn. A socket must only be used from the
// goroutine that owns it.
func (s *Socket) SendParts(parts [][]byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if err := s.sock.Send(zmq4.NewMsgFrom(parts...)); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// RecvParts implements Conn.
func (s *Socket) RecvParts(timeout time.Duration) ([][]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-s.recv:
		if res.err != nil {
			select {
			case <-s.done:
				// The error is our own teardown surfacing.
				return nil, ErrClosed
			default:
			}
			return nil, fmt.Errorf("transport: recv: %w", res.err)
		}
		return res.parts, nil
	case <-s.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, nil
	}
}

// Close implements Conn. It is idempotent.
func (s *Socket) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cerr = s.sock.Close()
	})
	return s.cerr
}

// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package assistant wraps a worker with the DagBox protocol loop. The
// assistant registers the worker's service with the broker, answers
// pings, pings the broker when idle, re-registers on reconnect, and
// hands every request to the embedded worker. The worker itself only
// processes requests.
package assistant

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DagBox/DagBox/message"
	"github.com/DagBox/DagBox/transport"
	"github.com/DagBox/DagBox/worker"
)

// Assistant drives one worker. Construct with New, then drive RunOnce
// from a single goroutine (component.Run does this).
type Assistant struct {
	sock    transport.Conn
	work    worker.Worker
	timeout time.Duration
}

// New creates an assistant over a dealer socket connected to the
// broker and announces the worker's service. The receive timeout sets
// the heartbeat cadence: after a full tick with no traffic, the
// assistant pings the broker.
func New(sock transport.Conn, w worker.Worker, timeout time.Duration) (*Assistant, error) {
	a := &Assistant{sock: sock, work: w, timeout: timeout}
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Assistant) register() error {
	reg := message.NewRegistration(a.work.ServiceName())
	if err := a.sock.SendParts(message.Encode(reg)); err != nil {
		return fmt.Errorf("assistant: register: %w", err)
	}
	return nil
}

// RunOnce waits for one message and handles it. At most one outbound
// message is produced per input; an idle tick produces a single ping.
// The returned error is fatal.
func (a *Assistant) RunOnce() error {
	parts, err := a.sock.RecvParts(a.timeout)
	if err != nil {
		return fmt.Errorf("assistant: %w", err)
	}
	if parts == nil {
		// Nothing from the broker for a full tick; check it is alive.
		return a.send(message.NewPing())
	}

	msg, err := message.Decode(parts)
	if err != nil {
		log.WithError(err).WithField("service", a.work.ServiceName()).Warn("Dropping undecodable message")
		return nil
	}

	switch m := msg.(type) {
	case *message.Registration:
		log.WithField("service", m.Service).Debug("Registration acknowledged")
	case *message.Ping:
		return a.send(message.PongFromPing(m))
	case *message.Pong:
		// The broker is alive; nothing to do.
	case *message.Request:
		reply, err := a.work.Process(m)
		if err != nil {
			log.WithError(err).WithField("service", a.work.ServiceName()).Error("Worker failed to process request")
			return nil
		}
		return a.send(reply)
	case *message.Reply:
		log.WithField("service", a.work.ServiceName()).Warn("Dropping unexpected reply")
	case *message.Reconnect:
		// The broker has forgotten us; announce the service again.
		return a.register()
	}
	return nil
}

func (a *Assistant) send(msg message.Message) error {
	if err := a.sock.SendParts(message.Encode(msg)); err != nil {
		return fmt.Errorf("assistant: send: %w", err)
	}
	return nil
}

// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package broker implements the DagBox routing engine. The broker
// tracks which workers provide which services, forwards each request
// to a free worker or queues it, and routes every reply back to the
// client that asked for it.
//
// All broker state is confined to the goroutine driving RunOnce;
// components communicate with the broker exclusively over the
// transport, so the tables need no locking.
package broker

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DagBox/DagBox/message"
	"github.com/DagBox/DagBox/transport"
)

// ErrMissingSender reports a received message with no sender address.
// The router transport guarantees one; its absence means the socket
// wiring is broken, which the broker cannot recover from.
var ErrMissingSender = errors.New("broker: received message without sender address")

// Options configure broker behaviour.
type Options struct {
	// WorkerTimeout is how long a worker may stay silent before it is
	// presumed dead. Staleness is only evaluated when the worker comes
	// up for selection.
	WorkerTimeout time.Duration
	// PollTimeout bounds each receive so the loop wakes periodically
	// even when idle and can notice a stop request.
	PollTimeout time.Duration
}

// DefaultOptions returns the default broker options: a 600ms worker
// timeout (500ms worker-side timeout plus 100ms transport delay) and a
// 200ms poll.
func DefaultOptions() Options {
	return Options{
		WorkerTimeout: 600 * time.Millisecond,
		PollTimeout:   200 * time.Millisecond,
	}
}

// workerEntry is the directory record for a registered worker.
type workerEntry struct {
	address  []byte
	service  string
	lastSeen time.Time
}

// Broker routes requests between clients and workers. Construct with
// New, then drive RunOnce from a single goroutine (component.Run does
// this).
type Broker struct {
	sock transport.Conn
	opts Options

	// workers maps address bytes to the directory entry.
	workers map[string]*workerEntry
	// free maps a service to the addresses of its idle workers. A
	// worker is in at most one set, and in none while it carries a
	// request.
	free map[string]map[string]struct{}
	// pending maps a service to its FIFO of requests that arrived
	// while no worker was free.
	pending map[string][]*message.Request
	// queue collects outbound messages during handling of one input;
	// it is drained, in order, at the end of each step.
	queue []message.Message

	now func() time.Time
}

// New creates a broker reading from the given router socket. The
// socket must already be bound.
func New(sock transport.Conn, opts Options) *Broker {
	return &Broker{
		sock:    sock,
		opts:    opts,
		workers: make(map[string]*workerEntry),
		free:    make(map[string]map[string]struct{}),
		pending: make(map[string][]*message.Request),
		now:     time.Now,
	}
}

// RunOnce receives one message, handles it fully, and transmits
// everything the handling produced. A timeout with no message is a
// no-op. The returned error is fatal; undecodable input is logged and
// dropped instead.
func (b *Broker) RunOnce() error {
	parts, err := b.sock.RecvParts(b.opts.PollTimeout)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if parts == nil {
		return nil
	}

	msg, err := message.Decode(parts)
	if err != nil {
		log.WithError(err).Warn("Dropping undecodable message")
		return nil
	}
	if len(msg.Address()) == 0 {
		return ErrMissingSender
	}

	b.dispatch(msg)
	b.drain()
	return nil
}

func (b *Broker) dispatch(msg message.Message) {
	switch m := msg.(type) {
	case *message.Registration:
		b.handleRegistration(m)
	case *message.Ping:
		b.handlePing(m)
	case *message.Pong:
		b.handlePong(m)
	case *message.Request:
		b.handleRequest(m)
	case *message.Reply:
		b.handleReply(m)
	case *message.Reconnect:
		log.Warn("Dropping reconnect message; these only flow broker to worker")
	}
}

// handleRegistration records the worker, echoes the registration back
// as an acknowledgment, and makes the worker available.
func (b *Broker) handleRegistration(m *message.Registration) {
	key := string(m.Address())
	if old, ok := b.workers[key]; ok {
		b.removeFree(old)
	}
	entry := &workerEntry{
		address:  m.Address(),
		service:  m.Service,
		lastSeen: b.now(),
	}
	b.workers[key] = entry
	log.WithFields(log.Fields{
		"service": m.Service,
		"worker":  fmt.Sprintf("%x", m.Address()),
	}).Info("Registered worker")

	b.enqueue(m)
	b.freeWorker(entry)
}

// handlePing answers a known worker with a pong. An unknown sender
// believes it is registered while we have no record of it, so it is
// told to reconnect.
func (b *Broker) handlePing(m *message.Ping) {
	entry, ok := b.workers[string(m.Address())]
	if !ok {
		b.enqueue(message.ReconnectFromPing(m))
		return
	}
	entry.lastSeen = b.now()
	b.enqueue(message.PongFromPing(m))
}

// handlePong refreshes the worker's liveness. A pong from an unknown
// sender is ignored.
func (b *Broker) handlePong(m *message.Pong) {
	if entry, ok := b.workers[string(m.Address())]; ok {
		entry.lastSeen = b.now()
	}
}

// handleRequest routes a request to a free worker for its service, or
// queues it. Requests for services without any registered worker are
// dropped; the client is expected to time out and resubmit.
func (b *Broker) handleRequest(m *message.Request) {
	sender := m.Address()
	if len(m.Client) == 0 {
		// The request came straight from a client; remember where to
		// send the reply.
		m.Client = sender
	}
	if entry, ok := b.workers[string(sender)]; ok {
		// A worker submitting requests of its own is idle again.
		entry.lastSeen = b.now()
		b.freeWorker(entry)
	}

	if !b.hasService(m.Service) {
		log.WithField("service", m.Service).Warn("Dropping request for service without workers")
		return
	}
	if entry := b.getWorker(m.Service); entry != nil {
		m.SetAddress(entry.address)
		b.enqueue(m)
		return
	}
	// Selection may have evicted the last worker for the service.
	if !b.hasService(m.Service) {
		log.WithField("service", m.Service).Warn("Dropping request for service without workers")
		return
	}
	b.pending[m.Service] = append(b.pending[m.Service], m)
}

// handleReply marks the worker free again and routes the reply to the
// client recorded inside it.
func (b *Broker) handleReply(m *message.Reply) {
	if entry, ok := b.workers[string(m.Address())]; ok {
		entry.lastSeen = b.now()
		b.freeWorker(entry)
	}
	if len(m.Client) == 0 {
		log.Warn("Dropping reply carrying no client address")
		return
	}
	m.SetAddress(m.Client)
	b.enqueue(m)
}

// freeWorker hands the worker the oldest pending request for its
// service, or marks it idle when there is none.
func (b *Broker) freeWorker(entry *workerEntry) {
	if q := b.pending[entry.service]; len(q) > 0 {
		req := q[0]
		if len(q) == 1 {
			delete(b.pending, entry.service)
		} else {
			b.pending[entry.service] = q[1:]
		}
		req.SetAddress(entry.address)
		b.enqueue(req)
		return
	}
	set := b.free[entry.service]
	if set == nil {
		set = make(map[string]struct{})
		b.free[entry.service] = set
	}
	set[string(entry.address)] = struct{}{}
}

// getWorker pops an arbitrary free worker for the service, evicting
// entries that have been silent for WorkerTimeout or longer. Returns
// nil when no live free worker remains.
func (b *Broker) getWorker(service string) *workerEntry {
	available := b.free[service]
	for key := range available {
		delete(available, key)
		entry, ok := b.workers[key]
		if !ok {
			continue
		}
		if b.now().Sub(entry.lastSeen) >= b.opts.WorkerTimeout {
			delete(b.workers, key)
			log.WithFields(log.Fields{
				"service": service,
				"worker":  fmt.Sprintf("%x", entry.address),
			}).Warn("Evicted dead worker")
			continue
		}
		if len(available) == 0 {
			delete(b.free, service)
		}
		return entry
	}
	delete(b.free, service)
	return nil
}

// hasService reports whether any worker is registered for the service.
func (b *Broker) hasService(service string) bool {
	for _, entry := range b.workers {
		if entry.service == service {
			return true
		}
	}
	return false
}

// removeFree drops the worker from its service's idle set, if present.
func (b *Broker) removeFree(entry *workerEntry) {
	set := b.free[entry.service]
	if set == nil {
		return
	}
	delete(set, string(entry.address))
	if len(set) == 0 {
		delete(b.free, entry.service)
	}
}

func (b *Broker) enqueue(msg message.Message) {
	b.queue = append(b.queue, msg)
}

// drain transmits the queued outbound messages in enqueue order.
func (b *Broker) drain() {
	for _, msg := range b.queue {
		if err := b.sock.SendParts(message.Encode(msg)); err != nil {
			log.WithError(err).WithField("kind", msg.Kind()).Error("Failed to send outbound message")
		}
	}
	b.queue = nil
}

// Stats is a snapshot of the broker's tables.
type Stats struct {
	// Workers is the number of registered workers.
	Workers int
	// Free counts idle workers per service.
	Free map[string]int
	// Pending counts queued requests per service.
	Pending map[string]int
}

// Stats copies the current table sizes. The tables are confined to the
// goroutine driving RunOnce, so Stats must only be called while the
// loop is stopped, or from the test driving RunOnce itself.
func (b *Broker) Stats() Stats {
	s := Stats{
		Workers: len(b.workers),
		Free:    make(map[string]int, len(b.free)),
		Pending: make(map[string]int, len(b.pending)),
	}
	for service, set := range b.free {
		s.Free[service] = len(set)
	}
	for service, q := range b.pending {
		s.Pending[service] = len(q)
	}
	return s
}
